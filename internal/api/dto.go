package api

import (
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/services"
)

// MonitoringResponse is the JSON form of a monitoring record.
type MonitoringResponse struct {
	ShipmentID          string               `json:"shipment_id"`
	TrackingNumber      string               `json:"tracking_number"`
	Carrier             string               `json:"carrier"`
	ClientID            string               `json:"client_id,omitempty"`
	International       bool                 `json:"international"`
	EligibilityStatus   string               `json:"eligibility_status"`
	LastScanAt          *time.Time           `json:"last_scan_at,omitempty"`
	LastScanDescription string               `json:"last_scan_description,omitempty"`
	LastScanLocation    string               `json:"last_scan_location,omitempty"`
	DaysInTransit       int                  `json:"days_in_transit"`
	DaysSinceLastUpdate int                  `json:"days_since_last_update"`
	EligibleAfter       *time.Time           `json:"eligible_after,omitempty"`
	Assessment          *models.Assessment   `json:"assessment,omitempty"`
	NextCheckAt         time.Time            `json:"next_check_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	Checkpoints         []CheckpointResponse `json:"checkpoints"`
}

// CheckpointResponse is the JSON form of a stored scan.
type CheckpointResponse struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Sentiment   string    `json:"sentiment"`
	Status      string    `json:"status,omitempty"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
}

func toMonitoringResponse(view services.MonitoringView) MonitoringResponse {
	rec := view.Record
	resp := MonitoringResponse{
		ShipmentID:          rec.ShipmentID,
		TrackingNumber:      rec.TrackingNumber,
		Carrier:             rec.Carrier,
		ClientID:            rec.ClientID,
		International:       rec.International,
		EligibilityStatus:   string(rec.EligibilityStatus),
		LastScanAt:          rec.LastScanAt,
		LastScanDescription: rec.LastScanDescription,
		LastScanLocation:    rec.LastScanLocation,
		DaysInTransit:       rec.DaysInTransit,
		DaysSinceLastUpdate: rec.DaysSinceLastUpdate,
		EligibleAfter:       rec.EligibleAfter,
		Assessment:          rec.Assessment,
		NextCheckAt:         rec.NextCheckAt,
		UpdatedAt:           rec.UpdatedAt,
		Checkpoints:         make([]CheckpointResponse, 0, len(view.Checkpoints)),
	}
	for _, cp := range view.Checkpoints {
		resp.Checkpoints = append(resp.Checkpoints, CheckpointResponse{
			OccurredAt:  cp.OccurredAt,
			Type:        string(cp.Type),
			Sentiment:   string(cp.Sentiment),
			Status:      cp.Status,
			Description: cp.Description,
			Location:    cp.Location,
		})
	}
	return resp
}
