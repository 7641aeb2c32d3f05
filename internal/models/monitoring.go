package models

import "time"

// EligibilityStatus tracks where a monitored shipment sits in the claim lifecycle.
type EligibilityStatus string

const (
	EligibilityAtRisk       EligibilityStatus = "at_risk"
	EligibilityEligible     EligibilityStatus = "eligible"
	EligibilityClaimFiled   EligibilityStatus = "claim_filed"
	EligibilityApproved     EligibilityStatus = "approved"
	EligibilityDenied       EligibilityStatus = "denied"
	EligibilityMissedWindow EligibilityStatus = "missed_window"
)

// Valid reports whether the status is one of the known values.
func (s EligibilityStatus) Valid() bool {
	switch s {
	case EligibilityAtRisk, EligibilityEligible, EligibilityClaimFiled,
		EligibilityApproved, EligibilityDenied, EligibilityMissedWindow:
		return true
	default:
		return false
	}
}

// Terminal reports whether the record is excluded from further assessment.
func (s EligibilityStatus) Terminal() bool {
	switch s {
	case EligibilityApproved, EligibilityDenied, EligibilityMissedWindow:
		return true
	default:
		return false
	}
}

// OpenEligibilityStatuses are the states a claim resolution may still be mirrored into.
var OpenEligibilityStatuses = []EligibilityStatus{
	EligibilityAtRisk,
	EligibilityEligible,
	EligibilityClaimFiled,
}

// MonitoringRecord is the per-shipment watch row owned by the monitoring core.
type MonitoringRecord struct {
	ShipmentID          string
	TrackingNumber      string
	Carrier             string
	ClientID            string
	International       bool
	TrackingID          string
	EligibilityStatus   EligibilityStatus
	LastScanAt          *time.Time
	LastScanDescription string
	LastScanLocation    string
	DaysInTransit       int
	DaysSinceLastUpdate int
	EligibleAfter       *time.Time
	Assessment          *Assessment
	NextCheckAt         time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
