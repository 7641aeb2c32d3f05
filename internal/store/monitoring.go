package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

const monitoringColumns = `shipment_id, tracking_number, carrier, client_id, international, tracking_id,
       eligibility_status, last_scan_at, last_scan_description, last_scan_location,
       days_in_transit, days_since_last_update, eligible_after, assessment,
       next_check_at, created_at, updated_at`

// InsertMonitoring creates a record unless one already exists for the shipment.
// It reports whether a row was written.
func (s *Store) InsertMonitoring(ctx context.Context, rec models.MonitoringRecord) (bool, error) {
	assessment, err := encodeAssessment(rec.Assessment)
	if err != nil {
		return false, err
	}
	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO monitoring_records (`+monitoringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shipment_id) DO NOTHING`,
		rec.ShipmentID, rec.TrackingNumber, rec.Carrier, rec.ClientID, boolToInt(rec.International),
		nullString(rec.TrackingID), string(rec.EligibilityStatus), formatTimePtr(rec.LastScanAt),
		rec.LastScanDescription, rec.LastScanLocation, rec.DaysInTransit, rec.DaysSinceLastUpdate,
		formatTimePtr(rec.EligibleAfter), assessment, formatTime(rec.NextCheckAt), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert monitoring record %s: %w", rec.ShipmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert monitoring record %s: %w", rec.ShipmentID, err)
	}
	return n == 1, nil
}

// UpdateMonitoring overwrites the mutable fields of an existing record. It reports false when
// the record no longer exists, for example because a concurrent sweep saw a delivery.
func (s *Store) UpdateMonitoring(ctx context.Context, rec models.MonitoringRecord) (bool, error) {
	assessment, err := encodeAssessment(rec.Assessment)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitoring_records SET
			tracking_id = ?,
			eligibility_status = ?,
			last_scan_at = ?,
			last_scan_description = ?,
			last_scan_location = ?,
			days_in_transit = ?,
			days_since_last_update = ?,
			eligible_after = ?,
			assessment = ?,
			next_check_at = ?,
			updated_at = ?
		WHERE shipment_id = ?`,
		nullString(rec.TrackingID), string(rec.EligibilityStatus), formatTimePtr(rec.LastScanAt),
		rec.LastScanDescription, rec.LastScanLocation, rec.DaysInTransit, rec.DaysSinceLastUpdate,
		formatTimePtr(rec.EligibleAfter), assessment, formatTime(rec.NextCheckAt),
		formatTime(s.now()), rec.ShipmentID,
	)
	if err != nil {
		return false, fmt.Errorf("update monitoring record %s: %w", rec.ShipmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update monitoring record %s: %w", rec.ShipmentID, err)
	}
	return n == 1, nil
}

// GetMonitoring loads a record by shipment id.
func (s *Store) GetMonitoring(ctx context.Context, shipmentID string) (models.MonitoringRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+monitoringColumns+` FROM monitoring_records WHERE shipment_id = ?`, shipmentID)
	rec, err := scanMonitoring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MonitoringRecord{}, ErrNotFound
	}
	return rec, err
}

// RowError is a stored row that was read but could not be decoded.
type RowError struct {
	ShipmentID string
	Err        error
}

func (e RowError) Error() string { return e.ShipmentID + ": " + e.Err.Error() }

func (e RowError) Unwrap() error { return e.Err }

// ListDueMonitoring returns non-terminal records whose next check is at or before now,
// most overdue first. Rows that cannot be decoded are reported separately and do not stop the
// listing.
func (s *Store) ListDueMonitoring(ctx context.Context, now time.Time, limit int) ([]models.MonitoringRecord, []RowError, error) {
	terminal := []any{
		string(models.EligibilityApproved),
		string(models.EligibilityDenied),
		string(models.EligibilityMissedWindow),
	}
	args := append(terminal, formatTime(now), limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+monitoringColumns+`
		FROM monitoring_records
		WHERE eligibility_status NOT IN (`+placeholders(len(terminal))+`)
		  AND julianday(next_check_at) <= julianday(?)
		ORDER BY julianday(next_check_at) ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query due monitoring records: %w", err)
	}
	defer rows.Close()

	var (
		out []models.MonitoringRecord
		bad []RowError
	)
	for rows.Next() {
		rec, err := scanMonitoring(rows)
		if err != nil {
			if rec.ShipmentID == "" {
				return nil, nil, err
			}
			bad = append(bad, RowError{ShipmentID: rec.ShipmentID, Err: err})
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, bad, nil
}

// DeleteMonitoring removes a record, reporting whether it existed.
func (s *Store) DeleteMonitoring(ctx context.Context, shipmentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitoring_records WHERE shipment_id = ?`, shipmentID)
	if err != nil {
		return false, fmt.Errorf("delete monitoring record %s: %w", shipmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete monitoring record %s: %w", shipmentID, err)
	}
	return n == 1, nil
}

func encodeAssessment(a *models.Assessment) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode assessment: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanMonitoring(row rowScanner) (models.MonitoringRecord, error) {
	var (
		rec           models.MonitoringRecord
		international int
		trackingID    sql.NullString
		status        string
		lastScan      sql.NullString
		eligibleAfter sql.NullString
		assessment    sql.NullString
		nextCheck     string
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(
		&rec.ShipmentID, &rec.TrackingNumber, &rec.Carrier, &rec.ClientID, &international, &trackingID,
		&status, &lastScan, &rec.LastScanDescription, &rec.LastScanLocation,
		&rec.DaysInTransit, &rec.DaysSinceLastUpdate, &eligibleAfter, &assessment,
		&nextCheck, &createdAt, &updatedAt,
	); err != nil {
		return models.MonitoringRecord{}, err
	}
	rec.International = international == 1
	rec.TrackingID = trackingID.String
	rec.EligibilityStatus = models.EligibilityStatus(status)

	// Past this point the row was read; decode failures keep the shipment id so callers can
	// report the row.
	failed := func(err error) (models.MonitoringRecord, error) {
		return models.MonitoringRecord{ShipmentID: rec.ShipmentID}, err
	}
	var err error
	if rec.LastScanAt, err = parseTimePtr(lastScan); err != nil {
		return failed(err)
	}
	if rec.EligibleAfter, err = parseTimePtr(eligibleAfter); err != nil {
		return failed(err)
	}
	if rec.NextCheckAt, err = parseTime(nextCheck); err != nil {
		return failed(err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return failed(err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return failed(err)
	}
	if assessment.Valid && assessment.String != "" {
		var a models.Assessment
		if err := json.Unmarshal([]byte(assessment.String), &a); err != nil {
			return failed(fmt.Errorf("decode assessment for %s: %w", rec.ShipmentID, err))
		}
		rec.Assessment = &a
	}
	return rec, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
