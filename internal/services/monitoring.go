package services

import (
	"context"

	"github.com/parcelguard/claimwatch/internal/models"
)

// MonitoringView is a monitoring record with its stored scan history, newest first.
type MonitoringView struct {
	Record      models.MonitoringRecord
	Checkpoints []models.Checkpoint
}

// Monitoring returns the record for a shipment. store.ErrNotFound is passed through.
func (s *Service) Monitoring(ctx context.Context, shipmentID string) (MonitoringView, error) {
	rec, err := s.store.GetMonitoring(ctx, shipmentID)
	if err != nil {
		return MonitoringView{}, err
	}
	checkpoints, err := s.store.ListCheckpoints(ctx, shipmentID)
	if err != nil {
		return MonitoringView{}, err
	}
	return MonitoringView{Record: rec, Checkpoints: checkpoints}, nil
}
