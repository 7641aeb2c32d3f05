package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

// UpsertBenchmark replaces the entry stored under (kind, key).
func (s *Store) UpsertBenchmark(ctx context.Context, entry models.BenchmarkEntry) error {
	zones, err := json.Marshal(entry.Zones)
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO benchmarks (kind, key, zones, route_avg, route_samples, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			zones = excluded.zones,
			route_avg = excluded.route_avg,
			route_samples = excluded.route_samples,
			computed_at = excluded.computed_at`,
		string(entry.Kind), entry.Key, string(zones), entry.Route.AvgDays, entry.Route.Samples,
		formatTime(entry.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert benchmark %s/%s: %w", entry.Kind, entry.Key, err)
	}
	return nil
}

// DeleteBenchmarksBefore removes entries whose computed_at is earlier than computedBefore.
func (s *Store) DeleteBenchmarksBefore(ctx context.Context, computedBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM benchmarks WHERE julianday(computed_at) < julianday(?)`, formatTime(computedBefore))
	if err != nil {
		return 0, fmt.Errorf("delete stale benchmarks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListBenchmarks returns every stored entry.
func (s *Store) ListBenchmarks(ctx context.Context) ([]models.BenchmarkEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, key, zones, route_avg, route_samples, computed_at FROM benchmarks`)
	if err != nil {
		return nil, fmt.Errorf("query benchmarks: %w", err)
	}
	defer rows.Close()

	var out []models.BenchmarkEntry
	for rows.Next() {
		var (
			entry    models.BenchmarkEntry
			kind     string
			zones    string
			computed string
		)
		if err := rows.Scan(&kind, &entry.Key, &zones, &entry.Route.AvgDays, &entry.Route.Samples, &computed); err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		entry.Kind = models.BenchmarkKind(kind)
		if err := json.Unmarshal([]byte(zones), &entry.Zones); err != nil {
			return nil, fmt.Errorf("decode zones for %s/%s: %w", kind, entry.Key, err)
		}
		t, err := parseTime(computed)
		if err != nil {
			return nil, err
		}
		entry.ComputedAt = t
		out = append(out, entry)
	}
	return out, rows.Err()
}
