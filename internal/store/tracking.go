package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveTrackingID remembers the provider's tracking id for a shipment, replacing any earlier one.
func (s *Store) SaveTrackingID(ctx context.Context, shipmentID, trackingID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_ids (shipment_id, tracking_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(shipment_id) DO UPDATE SET
			tracking_id = excluded.tracking_id,
			updated_at = excluded.updated_at`,
		shipmentID, trackingID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save tracking id for %s: %w", shipmentID, err)
	}
	return nil
}

// GetTrackingID returns the remembered tracking id, or "" when none was saved.
func (s *Store) GetTrackingID(ctx context.Context, shipmentID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT tracking_id FROM tracking_ids WHERE shipment_id = ?`, shipmentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get tracking id for %s: %w", shipmentID, err)
	}
	return id, nil
}
