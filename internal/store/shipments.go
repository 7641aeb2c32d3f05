package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

const shipmentColumns = `s.id, s.tracking_number, s.client_id, s.carrier, s.service_option,
       s.origin_country, s.destination_country, s.zone, s.label_created_at, s.delivered_at`

// UpsertShipment writes a base shipment record. Ingestion owns these rows in production;
// the monitoring core uses this for fixtures and local development.
func (s *Store) UpsertShipment(ctx context.Context, sh models.Shipment) error {
	var label sql.NullString
	if !sh.LabelCreatedAt.IsZero() {
		label = sql.NullString{String: formatTime(sh.LabelCreatedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipments (
			id, tracking_number, client_id, carrier, service_option,
			origin_country, destination_country, zone, label_created_at, delivered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tracking_number = excluded.tracking_number,
			client_id = excluded.client_id,
			carrier = excluded.carrier,
			service_option = excluded.service_option,
			origin_country = excluded.origin_country,
			destination_country = excluded.destination_country,
			zone = excluded.zone,
			label_created_at = excluded.label_created_at,
			delivered_at = excluded.delivered_at`,
		sh.ID, sh.TrackingNumber, sh.ClientID, sh.Carrier, sh.ServiceOption,
		sh.OriginCountry, sh.DestinationCountry, sh.Zone, label, formatTimePtr(sh.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("upsert shipment %s: %w", sh.ID, err)
	}
	return nil
}

// GetShipment loads a single shipment by id.
func (s *Store) GetShipment(ctx context.Context, id string) (models.Shipment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments s WHERE s.id = ?`, id)
	sh, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Shipment{}, ErrNotFound
	}
	return sh, err
}

// ListEnrollmentCandidates returns undelivered shipments labelled at or before labelBefore that
// are neither monitored nor known to be delivered, oldest label first.
func (s *Store) ListEnrollmentCandidates(ctx context.Context, labelBefore time.Time, limit int) ([]models.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shipmentColumns+`
		FROM shipments s
		WHERE s.label_created_at IS NOT NULL
		  AND s.delivered_at IS NULL
		  AND julianday(s.label_created_at) <= julianday(?)
		  AND NOT EXISTS (SELECT 1 FROM monitoring_records m WHERE m.shipment_id = s.id)
		  AND NOT EXISTS (SELECT 1 FROM checkpoints c WHERE c.shipment_id = s.id AND c.type = 'DELIVERED')
		ORDER BY julianday(s.label_created_at) ASC
		LIMIT ?`, formatTime(labelBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("query enrollment candidates: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}

// ListDeliveredSince returns shipments delivered at or after since.
func (s *Store) ListDeliveredSince(ctx context.Context, since time.Time) ([]models.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shipmentColumns+`
		FROM shipments s
		WHERE s.delivered_at IS NOT NULL
		  AND s.label_created_at IS NOT NULL
		  AND julianday(s.delivered_at) >= julianday(?)
		ORDER BY julianday(s.delivered_at) ASC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query delivered shipments: %w", err)
	}
	defer rows.Close()
	return collectShipments(rows)
}

func collectShipments(rows *sql.Rows) ([]models.Shipment, error) {
	var out []models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanShipment(row rowScanner) (models.Shipment, error) {
	var (
		sh        models.Shipment
		label     sql.NullString
		delivered sql.NullString
	)
	if err := row.Scan(
		&sh.ID, &sh.TrackingNumber, &sh.ClientID, &sh.Carrier, &sh.ServiceOption,
		&sh.OriginCountry, &sh.DestinationCountry, &sh.Zone, &label, &delivered,
	); err != nil {
		return models.Shipment{}, err
	}
	if label.Valid {
		t, err := parseTime(label.String)
		if err != nil {
			return models.Shipment{}, err
		}
		sh.LabelCreatedAt = t
	}
	deliveredAt, err := parseTimePtr(delivered)
	if err != nil {
		return models.Shipment{}, err
	}
	sh.DeliveredAt = deliveredAt
	return sh, nil
}
