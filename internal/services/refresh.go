package services

import (
	"context"
	"errors"
	"time"

	"github.com/parcelguard/claimwatch/internal/engine"
	"github.com/parcelguard/claimwatch/internal/metrics"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// errStopSweep signals that the sweep's context ended while waiting on the limiter.
var errStopSweep = errors.New("sweep stopped")

// refreshed is a shipment's scan history after a tracking lookup.
type refreshed struct {
	TrackingID  string
	Checkpoints []models.Checkpoint
}

// refresh fetches new scans for a shipment, appends them and returns the full stored history.
// Without a tracking client only the stored history is returned. A provider tracking id is
// saved as soon as it is known, so a run that fails later still polls instead of creating.
func (s *Service) refresh(ctx context.Context, sh models.Shipment, trackingID string) (refreshed, error) {
	out := refreshed{TrackingID: trackingID}
	if s.tracking != nil {
		if trackingID == "" {
			saved, err := s.store.GetTrackingID(ctx, sh.ID)
			if err != nil {
				return out, utils.Persistence("store.get_tracking_id", err)
			}
			trackingID = saved
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return out, errStopSweep
		}
		req := repo.LookupRequest{TrackingNumber: sh.TrackingNumber, Carrier: sh.Carrier, TrackingID: trackingID}
		res, err := s.tracking.Lookup(ctx, req)
		kind := res.Kind
		if kind == "" {
			kind = repo.LookupCreate
			if trackingID != "" {
				kind = repo.LookupPoll
			}
		}
		metrics.ObserveTrackingLookup(string(kind), err)
		if err != nil {
			if ctx.Err() != nil {
				return out, errStopSweep
			}
			return out, utils.Transient("tracking.lookup", err)
		}
		if res.TrackingID != "" {
			out.TrackingID = res.TrackingID
			if res.TrackingID != trackingID {
				if err := s.store.SaveTrackingID(ctx, sh.ID, res.TrackingID); err != nil {
					return out, utils.Persistence("store.save_tracking_id", err)
				}
			}
		}
		if fresh := s.extractor.Normalize(sh.ID, res.Events); len(fresh) > 0 {
			if _, err := s.store.AppendCheckpoints(ctx, fresh); err != nil {
				return out, utils.Persistence("store.append_checkpoints", err)
			}
		}
	}
	history, err := s.store.ListCheckpoints(ctx, sh.ID)
	if err != nil {
		return out, utils.Persistence("store.list_checkpoints", err)
	}
	out.Checkpoints = history
	return out, nil
}

// eligibility runs claim detection and the state machine for a shipment.
func (s *Service) eligibility(ctx context.Context, sh models.Shipment, current models.EligibilityStatus, daysSinceUpdate int) (engine.Transition, error) {
	claim, err := s.store.FindActiveClaim(ctx, sh.ID)
	if err != nil {
		return engine.Transition{}, utils.Persistence("store.find_active_claim", err)
	}
	return engine.NextEligibility(s.opts.Eligibility, engine.EligibilityInput{
		Current:             current,
		International:       sh.International(),
		DaysSinceLastUpdate: daysSinceUpdate,
		Claim:               claim,
	}), nil
}

// buildRecord assembles the monitoring row written after an assessment.
func (s *Service) buildRecord(sh models.Shipment, trackingID string, out engine.Outcome, status models.EligibilityStatus, now time.Time) models.MonitoringRecord {
	assessment := out.Assessment
	lastScan := out.Signals.LastScanAt()
	anchor := sh.LabelCreatedAt
	if lastScan != nil {
		anchor = *lastScan
	}
	eligibleAfter := s.opts.Eligibility.EligibleAfter(anchor, sh.International())

	rec := models.MonitoringRecord{
		ShipmentID:          sh.ID,
		TrackingNumber:      sh.TrackingNumber,
		Carrier:             sh.Carrier,
		ClientID:            sh.ClientID,
		International:       sh.International(),
		TrackingID:          trackingID,
		EligibilityStatus:   status,
		LastScanAt:          lastScan,
		DaysInTransit:       out.DaysInTransit,
		DaysSinceLastUpdate: out.DaysSinceLastUpdate,
		EligibleAfter:       &eligibleAfter,
		Assessment:          &assessment,
		NextCheckAt: s.opts.Scheduler.NextCheck(now, engine.ScheduleInput{
			Assessment:        &assessment,
			DaysSinceLastScan: out.DaysSinceLastUpdate,
			DaysInTransit:     out.DaysInTransit,
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if latest := out.Signals.Latest; latest != nil {
		rec.LastScanDescription = latest.Description
		rec.LastScanLocation = latest.Location
	}
	return rec
}
