package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parcelguard/claimwatch/internal/benchmark"
	"github.com/parcelguard/claimwatch/internal/engine"
	"github.com/parcelguard/claimwatch/internal/metrics"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// EntrySweep enrolls in-transit shipments that have been travelling longer than their
// benchmark-derived threshold.
func (s *Service) EntrySweep(ctx context.Context) models.SweepSummary {
	run := s.begin(models.SweepEntry)
	now := s.now()

	snap, err := benchmark.LoadSnapshot(ctx, s.store)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_benchmarks", err))
		return run.finish()
	}
	labelBefore := now.Add(-time.Duration(s.opts.MinAgeDays) * 24 * time.Hour)
	candidates, err := s.store.ListEnrollmentCandidates(ctx, labelBefore, s.opts.EntryBatchSize)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_enrollment_candidates", err))
		return run.finish()
	}
	run.logger.Debug("entry candidates loaded", slog.Int("count", len(candidates)), slog.Int("benchmarks", snap.Len()))

	for _, sh := range candidates {
		if run.expired(ctx) {
			break
		}
		run.summary.Processed++
		if err := s.enroll(ctx, run, snap, sh, now); err != nil {
			if errors.Is(err, errStopSweep) {
				run.summary.Truncated = true
				break
			}
			run.fail(sh.ID, err)
		}
	}
	return run.finish()
}

func (s *Service) enroll(ctx context.Context, run *sweepRun, snap *benchmark.Snapshot, sh models.Shipment, now time.Time) error {
	threshold := engine.EntryThreshold(sh, snap, s.opts.Threshold)
	inTransit := utils.WholeDaysBetween(sh.LabelCreatedAt, now)
	if inTransit < threshold.Days {
		run.summary.Skipped++
		return nil
	}
	if sh.TrackingNumber == "" {
		run.warn(sh.ID, utils.Integrity("entry.enroll", "shipment has no tracking number").Error())
		run.summary.Skipped++
		return nil
	}

	fresh, err := s.refresh(ctx, sh, "")
	if err != nil {
		return err
	}
	out := s.pipeline.Assess(ctx, engine.AssessInput{
		Shipment:    sh,
		Checkpoints: fresh.Checkpoints,
		TypicalDays: threshold.TypicalDays,
	}, now)
	if out.Warning != "" {
		run.warn(sh.ID, out.Warning)
	}
	if out.Delivered {
		run.summary.Skipped++
		return nil
	}

	tr, err := s.eligibility(ctx, sh, "", out.DaysSinceLastUpdate)
	if err != nil {
		return err
	}
	rec := s.buildRecord(sh, fresh.TrackingID, out, tr.Status, now)
	inserted, err := s.store.InsertMonitoring(ctx, rec)
	if err != nil {
		return utils.Persistence("store.insert_monitoring", err)
	}
	if !inserted {
		run.summary.Skipped++
		return nil
	}
	run.summary.Added++
	metrics.ObserveAssessment(string(rec.Assessment.Source))
	run.logger.Info("shipment enrolled",
		slog.String("shipment_id", sh.ID),
		slog.Int("days_in_transit", inTransit),
		slog.Int("threshold", threshold.Days),
		slog.String("basis", string(threshold.Basis)),
		slog.String("status", string(tr.Status)),
		slog.String("badge", string(rec.Assessment.StatusBadge)),
		slog.String("reason", tr.Reason),
	)
	return nil
}
