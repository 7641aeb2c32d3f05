package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/parcelguard/claimwatch/internal/engine"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
)

func TestEntrySweepEnrollsSilentShipmentAsEligible(t *testing.T) {
	h := newHarness(t, nil)
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1",
		repo.TrackingEvent{OccurredAt: daysAgo(t0, 19), Status: "InfoReceived", Description: "Shipping label created"},
		hubScan(daysAgo(t0, 16)),
	)

	summary := h.svc.EntrySweep(context.Background())
	if summary.Added != 1 || summary.Errored != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.EligibilityStatus != models.EligibilityEligible {
		t.Fatalf("expected eligible, got %s", rec.EligibilityStatus)
	}
	if rec.TrackingID != "trk_TNs1" {
		t.Fatalf("expected tracking id to be stored, got %q", rec.TrackingID)
	}
	if rec.DaysInTransit != 20 || rec.DaysSinceLastUpdate != 16 {
		t.Fatalf("unexpected elapsed days %d/%d", rec.DaysInTransit, rec.DaysSinceLastUpdate)
	}
	if rec.LastScanDescription != "Departed sort facility" {
		t.Fatalf("unexpected last scan %q", rec.LastScanDescription)
	}
	wantAfter := daysAgo(t0, 16).Add(15 * 24 * time.Hour)
	if rec.EligibleAfter == nil || !rec.EligibleAfter.Equal(wantAfter) {
		t.Fatalf("expected eligible_after %s, got %v", wantAfter, rec.EligibleAfter)
	}
	if !rec.NextCheckAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expected urgent recheck in 1h, got %s", rec.NextCheckAt)
	}
	if rec.Assessment == nil || rec.Assessment.Source != models.SourceHeuristic {
		t.Fatalf("expected heuristic assessment, got %+v", rec.Assessment)
	}

	history, err := h.store.ListCheckpoints(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 stored checkpoints, got %d", len(history))
	}
}

func TestEntrySweepExistingClaimFilesClaim(t *testing.T) {
	h := newHarness(t, nil)
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 16)))
	if err := h.store.InsertClaimTicket(context.Background(), models.ClaimTicket{
		ID:         "ticket-1",
		Type:       models.TicketTypeClaim,
		Status:     models.ClaimUnderReview,
		ShipmentID: "s1",
		CreatedAt:  daysAgo(t0, 1),
	}); err != nil {
		t.Fatalf("InsertClaimTicket: %v", err)
	}

	if summary := h.svc.EntrySweep(context.Background()); summary.Added != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.EligibilityStatus != models.EligibilityClaimFiled {
		t.Fatalf("expected claim_filed, got %s", rec.EligibilityStatus)
	}
}

func TestEntrySweepIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.seedShipment(t, carrierXShipment("s2"))
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 10)))
	h.tracking.set("TNs2", hubScan(daysAgo(t0, 4)))

	first := h.svc.EntrySweep(context.Background())
	if first.Added != 2 {
		t.Fatalf("expected 2 enrollments, got %+v", first)
	}
	second := h.svc.EntrySweep(context.Background())
	if second.Added != 0 || second.Processed != 0 {
		t.Fatalf("expected second run to find nothing, got %+v", second)
	}
	if len(h.tracking.calls) != 2 {
		t.Fatalf("expected one lookup per shipment, got %d", len(h.tracking.calls))
	}
}

func TestEntrySweepSkipsShipmentsBelowThreshold(t *testing.T) {
	h := newHarness(t, nil)
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	sh := carrierXShipment("s1")
	sh.LabelCreatedAt = daysAgo(t0, 7)
	h.seedShipment(t, sh)

	summary := h.svc.EntrySweep(context.Background())
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Added != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(h.tracking.calls) != 0 {
		t.Fatal("shipments below threshold must not be looked up")
	}
}

func TestEntrySweepFallsBackWithoutBenchmark(t *testing.T) {
	h := newHarness(t, nil)
	sh := carrierXShipment("s1")
	sh.LabelCreatedAt = daysAgo(t0, 8)
	h.seedShipment(t, sh)
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 6)))

	summary := h.svc.EntrySweep(context.Background())
	if summary.Added != 1 {
		t.Fatalf("expected enrollment at the 8 day fallback, got %+v", summary)
	}
}

func TestEntrySweepDoesNotEnrollDeliveredShipment(t *testing.T) {
	h := newHarness(t, nil)
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1",
		hubScan(daysAgo(t0, 5)),
		repo.TrackingEvent{OccurredAt: daysAgo(t0, 1), Status: "Delivered", Description: "Left at front door"},
	)

	summary := h.svc.EntrySweep(context.Background())
	if summary.Skipped != 1 || summary.Added != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := h.store.GetMonitoring(context.Background(), "s1"); err == nil {
		t.Fatal("delivered shipment must not be enrolled")
	}
	if again := h.svc.EntrySweep(context.Background()); again.Processed != 0 {
		t.Fatalf("delivered shipment should no longer be a candidate, got %+v", again)
	}
}

func TestEntrySweepWarnsOnMissingTrackingNumber(t *testing.T) {
	h := newHarness(t, nil)
	sh := carrierXShipment("s1")
	sh.TrackingNumber = ""
	h.seedShipment(t, sh)

	summary := h.svc.EntrySweep(context.Background())
	if summary.Skipped != 1 || len(summary.Warnings) != 1 {
		t.Fatalf("expected skip with warning, got %+v", summary)
	}
	if summary.Errored != 0 {
		t.Fatalf("integrity anomalies are not errors, got %+v", summary)
	}
}

func TestEntrySweepRecordsLookupFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.err = &repo.StatusError{Service: "tracking", Code: 503, Status: "503 Service Unavailable"}

	summary := h.svc.EntrySweep(context.Background())
	if summary.Errored != 1 || summary.Added != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.HasPrefix(summary.Errors[0], "s1: ") {
		t.Fatalf("expected error to name the shipment, got %q", summary.Errors[0])
	}
}

func TestEntrySweepFallsBackToHeuristicWhenAIFails(t *testing.T) {
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Pipeline = engine.NewPipeline(nil, nil, aiStub{err: errors.New("model overloaded")})
	})
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 9)))

	summary := h.svc.EntrySweep(context.Background())
	if summary.Added != 1 || summary.Errored != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Warnings) != 1 || !strings.Contains(summary.Warnings[0], "model overloaded") {
		t.Fatalf("expected AI failure warning, got %v", summary.Warnings)
	}
	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.Assessment.Source != models.SourceHeuristic {
		t.Fatalf("expected heuristic source, got %s", rec.Assessment.Source)
	}
}

func TestEntrySweepUsesAIAssessment(t *testing.T) {
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Pipeline = engine.NewPipeline(nil, nil, aiStub{})
	})
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 9)))

	if summary := h.svc.EntrySweep(context.Background()); summary.Added != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.Assessment.Source != models.SourceAI {
		t.Fatalf("expected ai source, got %s", rec.Assessment.Source)
	}
}

type flakyInsertStore struct {
	Store
	failures *int
}

func (f flakyInsertStore) InsertMonitoring(ctx context.Context, rec models.MonitoringRecord) (bool, error) {
	if *f.failures > 0 {
		*f.failures--
		return false, errors.New("database is locked")
	}
	return f.Store.InsertMonitoring(ctx, rec)
}

func TestEntryRetryPollsSavedTrackingID(t *testing.T) {
	failures := 1
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Store = flakyInsertStore{Store: d.Store, failures: &failures}
	})
	h.seedBenchmark(t, "CarrierX", 5, 6.0, 50)
	h.seedShipment(t, carrierXShipment("s1"))
	h.tracking.set("TNs1", hubScan(daysAgo(t0, 16)))

	first := h.svc.EntrySweep(context.Background())
	if first.Errored != 1 || first.Added != 0 {
		t.Fatalf("expected the insert failure to be reported, got %+v", first)
	}
	second := h.svc.EntrySweep(context.Background())
	if second.Added != 1 {
		t.Fatalf("expected enrollment on retry, got %+v", second)
	}

	if len(h.tracking.calls) != 2 {
		t.Fatalf("expected two lookups, got %+v", h.tracking.calls)
	}
	if h.tracking.calls[0].TrackingID != "" {
		t.Fatalf("first lookup should create a tracking, got %+v", h.tracking.calls[0])
	}
	if h.tracking.calls[1].TrackingID != "trk_TNs1" {
		t.Fatalf("retry should poll the saved tracking id, got %+v", h.tracking.calls[1])
	}
}
