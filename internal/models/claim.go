package models

import "time"

// TicketType classifies support tickets. Only claims are handled by the monitoring core.
type TicketType string

const TicketTypeClaim TicketType = "Claim"

// ClaimStatus is the human-facing review stage of a claim ticket.
type ClaimStatus string

const (
	ClaimUnderReview     ClaimStatus = "Under Review"
	ClaimCreditRequested ClaimStatus = "Credit Requested"
	ClaimCreditApproved  ClaimStatus = "Credit Approved"
	ClaimCreditDenied    ClaimStatus = "Credit Denied"
	ClaimResolved        ClaimStatus = "Resolved"
)

// SystemActor is recorded on events produced by automated sweeps.
const SystemActor = "System"

// ClaimTicket is a loss/damage claim raised against a shipment.
type ClaimTicket struct {
	ID         string
	Type       TicketType
	Status     ClaimStatus
	ShipmentID string
	Voided     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Events     []ClaimEvent
}

// ClaimEvent is one entry of a ticket's append-only activity log.
type ClaimEvent struct {
	ID         string
	TicketID   string
	CreatedAt  time.Time
	Actor      string
	FromStatus ClaimStatus
	ToStatus   ClaimStatus
	Message    string
}

// ClaimResolution links a settled claim to the monitoring record it should be mirrored into.
type ClaimResolution struct {
	TicketID      string
	ShipmentID    string
	ClaimStatus   ClaimStatus
	CurrentStatus EligibilityStatus
}

// MirroredStatus returns the eligibility status a settled claim maps to.
func (r ClaimResolution) MirroredStatus() (EligibilityStatus, bool) {
	switch r.ClaimStatus {
	case ClaimResolved:
		return EligibilityApproved, true
	case ClaimCreditDenied:
		return EligibilityDenied, true
	default:
		return "", false
	}
}
