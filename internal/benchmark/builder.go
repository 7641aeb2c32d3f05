// Package benchmark aggregates delivered shipments into expected transit times.
package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/utils"
)

const (
	// DomesticMaxDays and InternationalMaxDays cap plausible transit times; longer samples are
	// treated as data errors.
	DomesticMaxDays      = 30.0
	InternationalMaxDays = 60.0
	// MinRouteSamples is the sample count an international route needs before it is published.
	MinRouteSamples = 3
	// DefaultWindow is the trailing window of deliveries aggregated by a build.
	DefaultWindow = 90 * 24 * time.Hour
)

// Source lists delivered shipments.
type Source interface {
	ListDeliveredSince(ctx context.Context, since time.Time) ([]models.Shipment, error)
}

// Store abstracts persistence for computed benchmarks. DeleteBenchmarksBefore removes entries
// last computed before the given instant and reports how many went.
type Store interface {
	UpsertBenchmark(ctx context.Context, entry models.BenchmarkEntry) error
	DeleteBenchmarksBefore(ctx context.Context, computedBefore time.Time) (int, error)
}

// Builder recomputes benchmark entries from recent deliveries.
type Builder struct {
	source Source
	store  Store
	window time.Duration
	logger *slog.Logger
}

// NewBuilder constructs a Builder. A non-positive window selects DefaultWindow.
func NewBuilder(logger *slog.Logger, source Source, store Store, window time.Duration) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Builder{source: source, store: store, window: window, logger: logger}
}

// BuildResult reports what a build did. Errors holds one entry per group that failed to persist.
type BuildResult struct {
	Samples  int
	Excluded int
	Written  int
	Skipped  int
	Retired  int
	Errors   []GroupError
}

// GroupError ties a persistence failure to the benchmark group it affected.
type GroupError struct {
	Kind models.BenchmarkKind
	Key  string
	Err  error
}

func (e GroupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Key, e.Err)
}

func (e GroupError) Unwrap() error { return e.Err }

// Build aggregates deliveries in the trailing window ending at now and upserts every group.
// A failing group is recorded and the remaining groups are still written. Once every group is
// written, entries the window no longer supports are retired; after a partial build the old
// entries stay until the next complete one.
func (b *Builder) Build(ctx context.Context, now time.Time) (BuildResult, error) {
	if b.source == nil || b.store == nil {
		return BuildResult{}, fmt.Errorf("benchmark builder not configured")
	}
	shipments, err := b.source.ListDeliveredSince(ctx, now.Add(-b.window))
	if err != nil {
		return BuildResult{}, utils.Persistence("benchmark.list_delivered", err)
	}

	agg := Aggregate(shipments, now)
	result := BuildResult{Samples: agg.Samples, Excluded: agg.Excluded, Skipped: agg.Skipped}
	for _, entry := range agg.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := b.store.UpsertBenchmark(ctx, entry); err != nil {
			b.logger.Warn("benchmark upsert failed",
				slog.String("kind", string(entry.Kind)),
				slog.String("key", entry.Key),
				slog.Any("error", err),
			)
			result.Errors = append(result.Errors, GroupError{Kind: entry.Kind, Key: entry.Key, Err: err})
			continue
		}
		result.Written++
	}
	if len(result.Errors) > 0 {
		b.logger.Warn("benchmark build incomplete, stale entries kept", slog.Int("failed_groups", len(result.Errors)))
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	retired, err := b.store.DeleteBenchmarksBefore(ctx, now)
	if err != nil {
		return result, utils.Persistence("benchmark.retire", err)
	}
	result.Retired = retired
	return result, nil
}

// Aggregation is the pure result of grouping deliveries.
type Aggregation struct {
	Entries  []models.BenchmarkEntry
	Samples  int
	Excluded int
	Skipped  int
}

// Aggregate groups delivered shipments into benchmark entries stamped with computedAt.
// Domestic samples feed carrier and service-option entries per zone; international samples
// feed route entries only.
func Aggregate(shipments []models.Shipment, computedAt time.Time) Aggregation {
	type groupKey struct {
		kind models.BenchmarkKind
		key  string
	}
	zoned := make(map[groupKey]*[models.ZoneSlots]sampleSet)
	routes := make(map[groupKey]*sampleSet)

	var out Aggregation
	for _, sh := range shipments {
		days, ok := transitDays(sh)
		if !ok {
			out.Excluded++
			continue
		}
		if sh.International() {
			k := groupKey{models.BenchmarkInternationalRoute, models.RouteKey(sh.Carrier, sh.OriginCountry, sh.DestinationCountry)}
			set, ok := routes[k]
			if !ok {
				set = &sampleSet{}
				routes[k] = set
			}
			set.add(days)
			out.Samples++
			continue
		}

		if sh.Zone < 1 || sh.Zone > models.ZoneSlots {
			out.Excluded++
			continue
		}
		out.Samples++
		for _, k := range []groupKey{
			{models.BenchmarkCarrierService, normalizeKey(sh.Carrier)},
			{models.BenchmarkShipOption, normalizeKey(sh.ServiceOption)},
		} {
			if k.key == "" {
				continue
			}
			sets, ok := zoned[k]
			if !ok {
				sets = &[models.ZoneSlots]sampleSet{}
				zoned[k] = sets
			}
			sets[sh.Zone-1].add(days)
		}
	}

	for k, sets := range zoned {
		entry := models.BenchmarkEntry{Kind: k.kind, Key: k.key, ComputedAt: computedAt.UTC()}
		for i := range sets {
			entry.Zones[i] = sets[i].stat()
		}
		out.Entries = append(out.Entries, entry)
	}
	for k, set := range routes {
		if len(set.days) < MinRouteSamples {
			out.Skipped++
			continue
		}
		out.Entries = append(out.Entries, models.BenchmarkEntry{
			Kind:       k.kind,
			Key:        k.key,
			Route:      set.stat(),
			ComputedAt: computedAt.UTC(),
		})
	}

	sort.Slice(out.Entries, func(i, j int) bool {
		if out.Entries[i].Kind != out.Entries[j].Kind {
			return out.Entries[i].Kind < out.Entries[j].Kind
		}
		return out.Entries[i].Key < out.Entries[j].Key
	})
	return out
}

// transitDays returns the label-to-delivery time, rejecting non-positive and implausibly long
// samples.
func transitDays(sh models.Shipment) (decimal.Decimal, bool) {
	if sh.DeliveredAt == nil || sh.LabelCreatedAt.IsZero() {
		return decimal.Zero, false
	}
	days := utils.FractionalDays(sh.LabelCreatedAt, *sh.DeliveredAt)
	limit := DomesticMaxDays
	if sh.International() {
		limit = InternationalMaxDays
	}
	if days <= 0 || days > limit {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(days), true
}

type sampleSet struct {
	days []decimal.Decimal
}

func (s *sampleSet) add(d decimal.Decimal) {
	s.days = append(s.days, d)
}

func (s *sampleSet) stat() models.ZoneStat {
	if len(s.days) == 0 {
		return models.ZoneStat{}
	}
	avg := decimal.Sum(decimal.Zero, s.days...).
		Div(decimal.NewFromInt(int64(len(s.days)))).
		Round(1)
	f, _ := avg.Float64()
	return models.ZoneStat{AvgDays: f, Samples: len(s.days)}
}

func normalizeKey(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
