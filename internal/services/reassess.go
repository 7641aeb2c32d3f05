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
	"github.com/parcelguard/claimwatch/internal/store"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// ReassessSweep re-checks monitored shipments whose next check is due. A failed lookup leaves
// the record untouched so it stays due for the next run.
func (s *Service) ReassessSweep(ctx context.Context) models.SweepSummary {
	run := s.begin(models.SweepReassess)
	now := s.now()

	snap, err := benchmark.LoadSnapshot(ctx, s.store)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_benchmarks", err))
		return run.finish()
	}
	due, unreadable, err := s.store.ListDueMonitoring(ctx, now, s.opts.ReassessBatchSize)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_due_monitoring", err))
		return run.finish()
	}
	for _, bad := range unreadable {
		run.summary.Processed++
		run.summary.Skipped++
		run.warn(bad.ShipmentID, utils.Integrity("reassess", "unreadable monitoring record: "+bad.Err.Error()).Error())
	}

	for _, rec := range due {
		if run.expired(ctx) {
			break
		}
		run.summary.Processed++
		if err := s.reassess(ctx, run, snap, rec, now); err != nil {
			if errors.Is(err, errStopSweep) {
				run.summary.Truncated = true
				break
			}
			run.fail(rec.ShipmentID, err)
		}
	}
	return run.finish()
}

func (s *Service) reassess(ctx context.Context, run *sweepRun, snap *benchmark.Snapshot, rec models.MonitoringRecord, now time.Time) error {
	if !rec.EligibilityStatus.Valid() {
		run.warn(rec.ShipmentID, utils.Integrity("reassess", "unknown eligibility status "+string(rec.EligibilityStatus)).Error())
		run.summary.Skipped++
		return nil
	}
	sh, err := s.store.GetShipment(ctx, rec.ShipmentID)
	if errors.Is(err, store.ErrNotFound) {
		run.warn(rec.ShipmentID, utils.Integrity("reassess", "monitoring record has no shipment").Error())
		run.summary.Skipped++
		return nil
	}
	if err != nil {
		return utils.Persistence("store.get_shipment", err)
	}
	if sh.Delivered() {
		return s.dropDelivered(ctx, run, sh.ID)
	}

	fresh, err := s.refresh(ctx, sh, rec.TrackingID)
	if err != nil {
		return err
	}
	typical, _ := snap.Typical(sh)
	out := s.pipeline.Assess(ctx, engine.AssessInput{
		Shipment:    sh,
		Checkpoints: fresh.Checkpoints,
		TypicalDays: typical,
	}, now)
	if out.Warning != "" {
		run.warn(sh.ID, out.Warning)
	}
	if out.Delivered {
		return s.dropDelivered(ctx, run, sh.ID)
	}

	tr, err := s.eligibility(ctx, sh, rec.EligibilityStatus, out.DaysSinceLastUpdate)
	if err != nil {
		return err
	}
	next := s.buildRecord(sh, fresh.TrackingID, out, tr.Status, now)
	next.CreatedAt = rec.CreatedAt
	if next.TrackingID == "" {
		next.TrackingID = rec.TrackingID
	}
	ok, err := s.store.UpdateMonitoring(ctx, next)
	if err != nil {
		return utils.Persistence("store.update_monitoring", err)
	}
	if !ok {
		run.summary.Skipped++
		return nil
	}
	run.summary.Updated++
	metrics.ObserveAssessment(string(next.Assessment.Source))
	if tr.Changed {
		run.logger.Info("eligibility changed",
			slog.String("shipment_id", sh.ID),
			slog.String("from", string(rec.EligibilityStatus)),
			slog.String("to", string(tr.Status)),
			slog.String("reason", tr.Reason),
		)
	}
	return nil
}

func (s *Service) dropDelivered(ctx context.Context, run *sweepRun, shipmentID string) error {
	deleted, err := s.store.DeleteMonitoring(ctx, shipmentID)
	if err != nil {
		return utils.Persistence("store.delete_monitoring", err)
	}
	if deleted {
		run.summary.Deleted++
		run.logger.Info("delivered shipment removed from monitoring", slog.String("shipment_id", shipmentID))
	} else {
		run.summary.Skipped++
	}
	return nil
}
