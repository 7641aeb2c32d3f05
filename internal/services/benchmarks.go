package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parcelguard/claimwatch/internal/benchmark"
	"github.com/parcelguard/claimwatch/internal/models"
)

// BenchmarkSweep rebuilds the transit-time benchmark tables from recent deliveries.
func (s *Service) BenchmarkSweep(ctx context.Context) models.SweepSummary {
	run := s.begin(models.SweepBenchmarks)

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	target := budgetedBenchmarks{run: run, store: s.store, cancel: cancel}
	builder := benchmark.NewBuilder(run.logger, s.store, target, s.opts.BenchmarkWindow)

	res, err := builder.Build(buildCtx, s.now())
	run.summary.Processed = res.Samples
	run.summary.Updated = res.Written
	run.summary.Skipped = res.Skipped
	run.summary.Deleted = res.Retired
	for _, gerr := range res.Errors {
		if errors.Is(gerr.Err, context.Canceled) && run.summary.Truncated {
			continue
		}
		run.fail(string(gerr.Kind)+" "+gerr.Key, gerr.Err)
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.summary.Truncated = true
	default:
		run.abort(ctx, err)
	}
	if res.Excluded > 0 {
		run.logger.Info("benchmark samples excluded", slog.Int("excluded", res.Excluded))
	}
	return run.finish()
}

// budgetedBenchmarks stops a build at the first write past the sweep budget.
type budgetedBenchmarks struct {
	run    *sweepRun
	store  Store
	cancel context.CancelFunc
}

func (b budgetedBenchmarks) UpsertBenchmark(ctx context.Context, entry models.BenchmarkEntry) error {
	if b.run.expired(ctx) {
		b.cancel()
		return context.Canceled
	}
	return b.store.UpsertBenchmark(ctx, entry)
}

func (b budgetedBenchmarks) DeleteBenchmarksBefore(ctx context.Context, computedBefore time.Time) (int, error) {
	if b.run.expired(ctx) {
		b.cancel()
		return 0, context.Canceled
	}
	return b.store.DeleteBenchmarksBefore(ctx, computedBefore)
}
