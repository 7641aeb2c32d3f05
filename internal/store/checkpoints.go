package store

import (
	"context"
	"fmt"

	"github.com/parcelguard/claimwatch/internal/models"
)

// AppendCheckpoints inserts checkpoints, ignoring any already recorded for the same
// shipment, timestamp and raw description. It returns the number of new rows.
func (s *Store) AppendCheckpoints(ctx context.Context, checkpoints []models.Checkpoint) (int, error) {
	if len(checkpoints) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO checkpoints (
			shipment_id, occurred_at, status, substatus, description,
			location, type, sentiment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := formatTime(s.now())
	inserted := 0
	for _, cp := range checkpoints {
		res, err := stmt.ExecContext(ctx,
			cp.ShipmentID, formatTime(cp.OccurredAt), cp.Status, cp.Substatus, cp.Description,
			cp.Location, string(cp.Type), string(cp.Sentiment), created,
		)
		if err != nil {
			return 0, fmt.Errorf("insert checkpoint for %s: %w", cp.ShipmentID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit checkpoints: %w", err)
	}
	return inserted, nil
}

// ListCheckpoints returns a shipment's history, newest first.
func (s *Store) ListCheckpoints(ctx context.Context, shipmentID string) ([]models.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shipment_id, occurred_at, status, substatus, description, location, type, sentiment
		FROM checkpoints
		WHERE shipment_id = ?
		ORDER BY julianday(occurred_at) DESC, rowid DESC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []models.Checkpoint
	for rows.Next() {
		var (
			cp         models.Checkpoint
			occurredAt string
			cpType     string
			sentiment  string
		)
		if err := rows.Scan(&cp.ShipmentID, &occurredAt, &cp.Status, &cp.Substatus, &cp.Description,
			&cp.Location, &cpType, &sentiment); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		t, err := parseTime(occurredAt)
		if err != nil {
			return nil, err
		}
		cp.OccurredAt = t
		cp.Type = models.CheckpointType(cpType)
		cp.Sentiment = models.Sentiment(sentiment)
		out = append(out, cp)
	}
	return out, rows.Err()
}
