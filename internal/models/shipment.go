package models

import (
	"strings"
	"time"
)

// Shipment is the base shipment record maintained by the ingestion side of the platform.
// The monitoring core only reads it.
type Shipment struct {
	ID                 string
	TrackingNumber     string
	ClientID           string
	Carrier            string
	ServiceOption      string
	OriginCountry      string
	DestinationCountry string
	Zone               int
	LabelCreatedAt     time.Time
	DeliveredAt        *time.Time
}

// International reports whether the shipment crosses a border. Blank countries are treated as domestic.
func (s Shipment) International() bool {
	origin := strings.TrimSpace(s.OriginCountry)
	dest := strings.TrimSpace(s.DestinationCountry)
	if origin == "" || dest == "" {
		return false
	}
	return !strings.EqualFold(origin, dest)
}

// Delivered reports whether a delivery timestamp is on file.
func (s Shipment) Delivered() bool {
	return s.DeliveredAt != nil && !s.DeliveredAt.IsZero()
}
