package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

func seedClaim(t *testing.T, h *harness, id, shipmentID string, status models.ClaimStatus, created time.Time) {
	t.Helper()
	if err := h.store.InsertClaimTicket(context.Background(), models.ClaimTicket{
		ID:         id,
		Type:       models.TicketTypeClaim,
		Status:     status,
		ShipmentID: shipmentID,
		CreatedAt:  created,
	}); err != nil {
		t.Fatalf("InsertClaimTicket: %v", err)
	}
}

func TestClaimAdvanceRespectsGracePeriod(t *testing.T) {
	h := newHarness(t, nil)
	seedClaim(t, h, "fresh", "s1", models.ClaimUnderReview, t0.Add(-10*time.Minute))
	seedClaim(t, h, "stale", "s2", models.ClaimUnderReview, t0.Add(-20*time.Minute))

	summary := h.svc.ClaimAdvanceSweep(context.Background())
	if summary.Processed != 1 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	fresh, err := h.store.GetClaimTicket(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetClaimTicket: %v", err)
	}
	if fresh.Status != models.ClaimUnderReview {
		t.Fatalf("claim younger than 15m must not advance, got %s", fresh.Status)
	}

	stale, err := h.store.GetClaimTicket(context.Background(), "stale")
	if err != nil {
		t.Fatalf("GetClaimTicket: %v", err)
	}
	if stale.Status != models.ClaimCreditRequested {
		t.Fatalf("expected Credit Requested, got %s", stale.Status)
	}
	if len(stale.Events) != 1 {
		t.Fatalf("expected one appended event, got %d", len(stale.Events))
	}
	ev := stale.Events[0]
	if ev.Actor != models.SystemActor || ev.FromStatus != models.ClaimUnderReview || ev.ToStatus != models.ClaimCreditRequested {
		t.Fatalf("unexpected event %+v", ev)
	}

	if len(h.notifier.sent) != 1 || h.notifier.sent[0].To[0] != "fulfillment@example.com" {
		t.Fatalf("expected one notification to fulfillment, got %+v", h.notifier.sent)
	}

	again := h.svc.ClaimAdvanceSweep(context.Background())
	if again.Updated != 0 || again.Processed != 0 {
		t.Fatalf("advanced claim must not advance twice, got %+v", again)
	}
}

func TestClaimAdvanceNotificationFailureIsWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("email api returned 500")
	seedClaim(t, h, "stale", "s1", models.ClaimUnderReview, t0.Add(-time.Hour))

	summary := h.svc.ClaimAdvanceSweep(context.Background())
	if summary.Updated != 1 || summary.Errored != 0 {
		t.Fatalf("transition must survive notification failure, got %+v", summary)
	}
	if len(summary.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", summary.Warnings)
	}
}

func TestClaimAdvanceWithoutRecipientsSkipsEmail(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *Deps) { o.Recipients = nil })
	seedClaim(t, h, "stale", "s1", models.ClaimUnderReview, t0.Add(-time.Hour))

	if summary := h.svc.ClaimAdvanceSweep(context.Background()); summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(h.notifier.sent))
	}
}

func TestClaimSyncMirrorsResolutionOnce(t *testing.T) {
	h := newHarness(t, nil)
	enrollOne(t, h, "s1", 16)
	seedClaim(t, h, "ticket-1", "s1", models.ClaimResolved, t0.Add(-time.Hour))

	summary := h.svc.ClaimSyncSweep(context.Background())
	if summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.EligibilityStatus != models.EligibilityApproved {
		t.Fatalf("expected approved, got %s", rec.EligibilityStatus)
	}

	again := h.svc.ClaimSyncSweep(context.Background())
	if again.Updated != 0 {
		t.Fatalf("second sync must be a no-op, got %+v", again)
	}
}

func TestClaimSyncMirrorsDenial(t *testing.T) {
	h := newHarness(t, nil)
	enrollOne(t, h, "s1", 16)
	seedClaim(t, h, "ticket-1", "s1", models.ClaimCreditDenied, t0.Add(-time.Hour))

	if summary := h.svc.ClaimSyncSweep(context.Background()); summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	rec, err := h.store.GetMonitoring(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetMonitoring: %v", err)
	}
	if rec.EligibilityStatus != models.EligibilityDenied {
		t.Fatalf("expected denied, got %s", rec.EligibilityStatus)
	}
}
