package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

const claimColumns = `id, type, status, shipment_id, voided, created_at, updated_at`

// InsertClaimTicket writes a ticket and its initial events. The support desk owns ticket
// creation in production; this exists for fixtures and local development.
func (s *Store) InsertClaimTicket(ctx context.Context, t models.ClaimTicket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = t.CreatedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claim_tickets (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), string(t.Status), t.ShipmentID, boolToInt(t.Voided),
		formatTime(t.CreatedAt), formatTime(updated),
	); err != nil {
		return fmt.Errorf("insert claim ticket %s: %w", t.ID, err)
	}
	for _, ev := range t.Events {
		ev.TicketID = t.ID
		if err := insertClaimEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClaimTicket loads a ticket with its event log, newest event first.
func (s *Store) GetClaimTicket(ctx context.Context, id string) (models.ClaimTicket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claim_tickets WHERE id = ?`, id)
	t, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClaimTicket{}, ErrNotFound
	}
	if err != nil {
		return models.ClaimTicket{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, created_at, actor, from_status, to_status, message
		FROM claim_events
		WHERE ticket_id = ?
		ORDER BY julianday(created_at) DESC, rowid DESC`, id)
	if err != nil {
		return models.ClaimTicket{}, fmt.Errorf("query claim events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev        models.ClaimEvent
			createdAt string
			from, to  string
		)
		if err := rows.Scan(&ev.ID, &ev.TicketID, &createdAt, &ev.Actor, &from, &to, &ev.Message); err != nil {
			return models.ClaimTicket{}, fmt.Errorf("scan claim event: %w", err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return models.ClaimTicket{}, err
		}
		ev.FromStatus = models.ClaimStatus(from)
		ev.ToStatus = models.ClaimStatus(to)
		t.Events = append(t.Events, ev)
	}
	return t, rows.Err()
}

// FindActiveClaim returns the most recent non-voided claim for a shipment, or nil.
func (s *Store) FindActiveClaim(ctx context.Context, shipmentID string) (*models.ClaimTicket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+`
		FROM claim_tickets
		WHERE shipment_id = ? AND type = ? AND voided = 0
		ORDER BY julianday(created_at) DESC
		LIMIT 1`, shipmentID, string(models.TicketTypeClaim))
	t, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find claim for %s: %w", shipmentID, err)
	}
	return &t, nil
}

// ListClaimsAwaitingAdvance returns non-voided claims still Under Review that were created at
// or before createdBefore, oldest first.
func (s *Store) ListClaimsAwaitingAdvance(ctx context.Context, createdBefore time.Time, limit int) ([]models.ClaimTicket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+claimColumns+`
		FROM claim_tickets
		WHERE type = ? AND status = ? AND voided = 0 AND julianday(created_at) <= julianday(?)
		ORDER BY julianday(created_at) ASC
		LIMIT ?`,
		string(models.TicketTypeClaim), string(models.ClaimUnderReview), formatTime(createdBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("query claims awaiting advance: %w", err)
	}
	defer rows.Close()

	var out []models.ClaimTicket
	for rows.Next() {
		t, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TransitionClaim moves a ticket from one status to another and appends ev to its log in one
// transaction. The update is guarded by the current status, so it reports false (and writes
// nothing) when the ticket has already moved on.
func (s *Store) TransitionClaim(ctx context.Context, id string, from, to models.ClaimStatus, ev models.ClaimEvent) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE claim_tickets SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), formatTime(ev.CreatedAt), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition claim %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition claim %s: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}

	ev.TicketID = id
	ev.FromStatus = from
	ev.ToStatus = to
	if err := insertClaimEvent(ctx, tx, ev); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim transition %s: %w", id, err)
	}
	return true, nil
}

// ListClaimResolutions returns settled claims (Resolved or Credit Denied) whose linked
// monitoring record is still open. Only the latest claim per shipment is considered.
func (s *Store) ListClaimResolutions(ctx context.Context, limit int) ([]models.ClaimResolution, error) {
	args := []any{
		string(models.TicketTypeClaim),
		string(models.ClaimResolved),
		string(models.ClaimCreditDenied),
	}
	for _, st := range models.OpenEligibilityStatuses {
		args = append(args, string(st))
	}
	args = append(args, string(models.TicketTypeClaim), limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.shipment_id, c.status, m.eligibility_status
		FROM claim_tickets c
		JOIN monitoring_records m ON m.shipment_id = c.shipment_id
		WHERE c.type = ? AND c.voided = 0
		  AND c.status IN (?, ?)
		  AND m.eligibility_status IN (`+placeholders(len(models.OpenEligibilityStatuses))+`)
		  AND julianday(c.created_at) = (
			SELECT MAX(julianday(c2.created_at)) FROM claim_tickets c2
			WHERE c2.shipment_id = c.shipment_id AND c2.type = ? AND c2.voided = 0
		  )
		ORDER BY julianday(c.updated_at) ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query claim resolutions: %w", err)
	}
	defer rows.Close()

	var out []models.ClaimResolution
	for rows.Next() {
		var (
			r              models.ClaimResolution
			claim, current string
		)
		if err := rows.Scan(&r.TicketID, &r.ShipmentID, &claim, &current); err != nil {
			return nil, fmt.Errorf("scan claim resolution: %w", err)
		}
		r.ClaimStatus = models.ClaimStatus(claim)
		r.CurrentStatus = models.EligibilityStatus(current)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MirrorClaimResolution sets a monitoring record's status, guarded by the open-status set.
// It reports false when the record is already settled or gone, which makes re-runs no-ops.
func (s *Store) MirrorClaimResolution(ctx context.Context, shipmentID string, to models.EligibilityStatus) (bool, error) {
	args := []any{string(to), formatTime(s.now()), shipmentID}
	for _, st := range models.OpenEligibilityStatuses {
		args = append(args, string(st))
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitoring_records SET eligibility_status = ?, updated_at = ?
		WHERE shipment_id = ?
		  AND eligibility_status IN (`+placeholders(len(models.OpenEligibilityStatuses))+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("mirror claim resolution for %s: %w", shipmentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mirror claim resolution for %s: %w", shipmentID, err)
	}
	return n == 1, nil
}

func insertClaimEvent(ctx context.Context, tx *sql.Tx, ev models.ClaimEvent) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claim_events (id, ticket_id, created_at, actor, from_status, to_status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TicketID, formatTime(ev.CreatedAt), ev.Actor,
		string(ev.FromStatus), string(ev.ToStatus), ev.Message,
	); err != nil {
		return fmt.Errorf("insert claim event for %s: %w", ev.TicketID, err)
	}
	return nil
}

func scanClaim(row rowScanner) (models.ClaimTicket, error) {
	var (
		t            models.ClaimTicket
		ticketType   string
		status       string
		voided       int
		created, upd string
	)
	if err := row.Scan(&t.ID, &ticketType, &status, &t.ShipmentID, &voided, &created, &upd); err != nil {
		return models.ClaimTicket{}, err
	}
	t.Type = models.TicketType(ticketType)
	t.Status = models.ClaimStatus(status)
	t.Voided = voided == 1
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return models.ClaimTicket{}, err
	}
	if t.UpdatedAt, err = parseTime(upd); err != nil {
		return models.ClaimTicket{}, err
	}
	return t, nil
}
