package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parcelguard/claimwatch/internal/config"
	"github.com/parcelguard/claimwatch/internal/engine"
	"github.com/parcelguard/claimwatch/internal/extractors"
	"github.com/parcelguard/claimwatch/internal/metrics"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
	"github.com/parcelguard/claimwatch/internal/store"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// ErrUnknownSweep is returned by Run for a sweep name it does not recognise.
var ErrUnknownSweep = errors.New("unknown sweep")

// Store is the persistence surface used by the sweeps.
type Store interface {
	ListDeliveredSince(ctx context.Context, since time.Time) ([]models.Shipment, error)
	UpsertBenchmark(ctx context.Context, entry models.BenchmarkEntry) error
	DeleteBenchmarksBefore(ctx context.Context, computedBefore time.Time) (int, error)
	SaveTrackingID(ctx context.Context, shipmentID, trackingID string) error
	GetTrackingID(ctx context.Context, shipmentID string) (string, error)
	ListBenchmarks(ctx context.Context) ([]models.BenchmarkEntry, error)

	ListEnrollmentCandidates(ctx context.Context, labelBefore time.Time, limit int) ([]models.Shipment, error)
	GetShipment(ctx context.Context, id string) (models.Shipment, error)

	AppendCheckpoints(ctx context.Context, checkpoints []models.Checkpoint) (int, error)
	ListCheckpoints(ctx context.Context, shipmentID string) ([]models.Checkpoint, error)

	InsertMonitoring(ctx context.Context, rec models.MonitoringRecord) (bool, error)
	UpdateMonitoring(ctx context.Context, rec models.MonitoringRecord) (bool, error)
	GetMonitoring(ctx context.Context, shipmentID string) (models.MonitoringRecord, error)
	ListDueMonitoring(ctx context.Context, now time.Time, limit int) ([]models.MonitoringRecord, []store.RowError, error)
	DeleteMonitoring(ctx context.Context, shipmentID string) (bool, error)

	FindActiveClaim(ctx context.Context, shipmentID string) (*models.ClaimTicket, error)
	ListClaimsAwaitingAdvance(ctx context.Context, createdBefore time.Time, limit int) ([]models.ClaimTicket, error)
	TransitionClaim(ctx context.Context, id string, from, to models.ClaimStatus, ev models.ClaimEvent) (bool, error)
	ListClaimResolutions(ctx context.Context, limit int) ([]models.ClaimResolution, error)
	MirrorClaimResolution(ctx context.Context, shipmentID string, to models.EligibilityStatus) (bool, error)
}

// TrackingClient looks up carrier scan history.
type TrackingClient interface {
	Lookup(ctx context.Context, req repo.LookupRequest) (repo.TrackingResult, error)
}

// Notifier sends best-effort email.
type Notifier interface {
	Send(ctx context.Context, email repo.Email) (string, error)
}

// Options tunes batch sizes, budgets and policies.
type Options struct {
	EntryBatchSize    int
	ReassessBatchSize int
	ClaimBatchSize    int
	MinAgeDays        int
	BenchmarkWindow   time.Duration
	ClaimAdvanceAfter time.Duration
	ErrorCap          int
	Budgets           map[models.SweepName]time.Duration
	Recipients        []string

	Threshold   engine.ThresholdPolicy
	Eligibility engine.EligibilityPolicy
	Scheduler   engine.Scheduler
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps loaded configuration onto sweep options.
func OptionsFromConfig(cfg config.Config) Options {
	budgets := map[models.SweepName]time.Duration{
		models.SweepBenchmarks:    cfg.Sweeps.Budgets.Benchmarks,
		models.SweepEntry:         cfg.Sweeps.Budgets.Entry,
		models.SweepReassess:      cfg.Sweeps.Budgets.Reassess,
		models.SweepClaimsAdvance: cfg.Sweeps.Budgets.Claims,
		models.SweepClaimsSync:    cfg.Sweeps.Budgets.Claims,
	}
	return Options{
		EntryBatchSize:    cfg.Sweeps.EntryBatchSize,
		ReassessBatchSize: cfg.Sweeps.ReassessBatchSize,
		ClaimBatchSize:    cfg.Sweeps.ClaimBatchSize,
		MinAgeDays:        cfg.Sweeps.MinAgeDays,
		BenchmarkWindow:   cfg.Sweeps.BenchmarkWindow,
		ClaimAdvanceAfter: cfg.Sweeps.ClaimAdvanceAfter,
		ErrorCap:          cfg.Sweeps.ErrorCap,
		Budgets:           budgets,
		Recipients:        cfg.Clients.Notify.Recipients,
		Threshold: engine.ThresholdPolicy{
			Buffer:                cfg.Eligibility.BenchmarkBuffer,
			DomesticFallback:      cfg.Eligibility.DomesticFallback,
			InternationalFallback: cfg.Eligibility.InternationalFallback,
		},
		Eligibility: engine.EligibilityPolicy{
			DomesticDays:      cfg.Eligibility.DomesticDays,
			InternationalDays: cfg.Eligibility.InternationalDays,
		},
		Scheduler: engine.Scheduler{
			Urgent:   cfg.Schedule.Urgent,
			Elevated: cfg.Schedule.Elevated,
			Default:  cfg.Schedule.Default,
		},
	}
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Store     Store
	Tracking  TrackingClient
	Pipeline  *engine.Pipeline
	Extractor *extractors.CheckpointExtractor
	Notifier  Notifier
	Limiter   Limiter
}

// Service runs the monitoring sweeps. Each sweep is a bounded, sequential pass over persisted
// state; nothing is carried between runs except what is written to the store.
type Service struct {
	logger    *slog.Logger
	store     Store
	tracking  TrackingClient
	pipeline  *engine.Pipeline
	extractor *extractors.CheckpointExtractor
	notifier  Notifier
	limiter   Limiter
	opts      Options
	latencies *utils.LatencyTracker

	now   func() time.Time
	newID func() string
}

// NewService constructs the sweep service.
func NewService(logger *slog.Logger, deps Deps, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Extractor == nil {
		deps.Extractor = extractors.NewCheckpointExtractor(logger)
	}
	if deps.Pipeline == nil {
		deps.Pipeline = engine.NewPipeline(logger, deps.Extractor, nil)
	}
	if deps.Limiter == nil {
		deps.Limiter = NewLimiter(0)
	}
	def := DefaultOptions()
	if opts.EntryBatchSize <= 0 {
		opts.EntryBatchSize = def.EntryBatchSize
	}
	if opts.ReassessBatchSize <= 0 {
		opts.ReassessBatchSize = def.ReassessBatchSize
	}
	if opts.ClaimBatchSize <= 0 {
		opts.ClaimBatchSize = def.ClaimBatchSize
	}
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = def.ErrorCap
	}
	if opts.ClaimAdvanceAfter <= 0 {
		opts.ClaimAdvanceAfter = def.ClaimAdvanceAfter
	}
	if opts.MinAgeDays < 0 {
		opts.MinAgeDays = 0
	}
	if opts.Eligibility.DomesticDays <= 0 || opts.Eligibility.InternationalDays <= 0 {
		opts.Eligibility = def.Eligibility
	}
	if opts.Threshold.DomesticFallback <= 0 || opts.Threshold.InternationalFallback <= 0 {
		opts.Threshold = def.Threshold
	}
	return &Service{
		logger:    logger,
		store:     deps.Store,
		tracking:  deps.Tracking,
		pipeline:  deps.Pipeline,
		extractor: deps.Extractor,
		notifier:  deps.Notifier,
		limiter:   deps.Limiter,
		opts:      opts,
		latencies: utils.NewLatencyTracker(256),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run dispatches a sweep by name.
func (s *Service) Run(ctx context.Context, name models.SweepName) (models.SweepSummary, error) {
	switch name {
	case models.SweepBenchmarks:
		return s.BenchmarkSweep(ctx), nil
	case models.SweepEntry:
		return s.EntrySweep(ctx), nil
	case models.SweepReassess:
		return s.ReassessSweep(ctx), nil
	case models.SweepClaimsAdvance:
		return s.ClaimAdvanceSweep(ctx), nil
	case models.SweepClaimsSync:
		return s.ClaimSyncSweep(ctx), nil
	default:
		return models.SweepSummary{}, fmt.Errorf("%w: %q", ErrUnknownSweep, name)
	}
}

// sweepRun accumulates the summary of one sweep and enforces its budget.
type sweepRun struct {
	svc      *Service
	summary  models.SweepSummary
	started  time.Time
	deadline time.Time
	fatal    bool
	logger   *slog.Logger
}

func (s *Service) begin(name models.SweepName) *sweepRun {
	started := s.now()
	run := &sweepRun{
		svc:     s,
		started: started,
		summary: models.SweepSummary{
			Sweep:     name,
			RunID:     s.newID(),
			StartedAt: started.UTC(),
			Errors:    []string{},
		},
	}
	if budget := s.opts.Budgets[name]; budget > 0 {
		run.deadline = started.Add(budget)
	}
	run.logger = s.logger.With(slog.String("sweep", string(name)), slog.String("run_id", run.summary.RunID))
	run.logger.Info("sweep started")
	return run
}

// expired reports whether the sweep must stop before the next item.
func (r *sweepRun) expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.summary.Truncated = true
		return true
	}
	if !r.deadline.IsZero() && !r.svc.now().Before(r.deadline) {
		r.summary.Truncated = true
		return true
	}
	return false
}

// fail records a per-item error.
func (r *sweepRun) fail(item string, err error) {
	r.summary.Errored++
	msg := err.Error()
	if item != "" {
		msg = item + ": " + msg
	}
	if len(r.summary.Errors) < r.svc.opts.ErrorCap {
		r.summary.Errors = append(r.summary.Errors, msg)
	}
	r.logger.Warn("sweep item failed",
		slog.String("item", item),
		slog.String("kind", string(utils.KindOf(err))),
		slog.Any("error", err),
	)
}

// abort records an error that prevented the sweep from doing any work.
func (r *sweepRun) abort(ctx context.Context, err error) {
	if ctx.Err() != nil {
		r.summary.Truncated = true
	}
	r.fatal = true
	r.summary.Errors = append(r.summary.Errors, err.Error())
	r.logger.Error("sweep aborted", slog.Any("error", err))
}

// warn records a non-fatal anomaly.
func (r *sweepRun) warn(item, msg string) {
	if item != "" {
		msg = item + ": " + msg
	}
	if len(r.summary.Warnings) < r.svc.opts.ErrorCap {
		r.summary.Warnings = append(r.summary.Warnings, msg)
	}
	r.logger.Warn("sweep warning", slog.String("item", item), slog.String("warning", msg))
}

func (r *sweepRun) finish() models.SweepSummary {
	elapsed := r.svc.now().Sub(r.started)
	if elapsed < 0 {
		elapsed = 0
	}
	r.summary.ElapsedMs = elapsed.Milliseconds()

	outcome := metrics.OutcomeSuccess
	switch {
	case r.fatal:
		outcome = metrics.OutcomeError
	case r.summary.Errored > 0 || r.summary.Truncated:
		outcome = metrics.OutcomePartial
	}
	name := string(r.summary.Sweep)
	metrics.ObserveSweep(name, elapsed, outcome)
	metrics.AddSweepItems(name, "added", r.summary.Added)
	metrics.AddSweepItems(name, "updated", r.summary.Updated)
	metrics.AddSweepItems(name, "skipped", r.summary.Skipped)
	metrics.AddSweepItems(name, "deleted", r.summary.Deleted)
	metrics.AddSweepItems(name, "errored", r.summary.Errored)

	lat := r.svc.latencies
	lat.Observe(name, elapsed)
	if count := lat.Count(name); count >= 20 && count%20 == 0 {
		r.logger.Info("sweep latency", slog.Duration("p95", lat.Percentile(name, 95)), slog.Int("samples", count))
	}

	r.logger.Info("sweep finished",
		slog.String("outcome", outcome),
		slog.Int("processed", r.summary.Processed),
		slog.Int("added", r.summary.Added),
		slog.Int("updated", r.summary.Updated),
		slog.Int("skipped", r.summary.Skipped),
		slog.Int("deleted", r.summary.Deleted),
		slog.Int("errored", r.summary.Errored),
		slog.Bool("truncated", r.summary.Truncated),
		slog.Duration("elapsed", elapsed),
	)
	return r.summary
}
