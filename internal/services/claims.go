package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// ClaimAdvanceSweep moves claims that have sat in Under Review past the grace period to
// Credit Requested and notifies fulfillment.
func (s *Service) ClaimAdvanceSweep(ctx context.Context) models.SweepSummary {
	run := s.begin(models.SweepClaimsAdvance)
	now := s.now()

	claims, err := s.store.ListClaimsAwaitingAdvance(ctx, now.Add(-s.opts.ClaimAdvanceAfter), s.opts.ClaimBatchSize)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_claims_awaiting_advance", err))
		return run.finish()
	}

	for _, claim := range claims {
		if run.expired(ctx) {
			break
		}
		run.summary.Processed++
		ev := models.ClaimEvent{
			ID:        s.newID(),
			CreatedAt: now,
			Actor:     models.SystemActor,
			Message:   fmt.Sprintf("Claim automatically advanced to %s after review period", models.ClaimCreditRequested),
		}
		moved, err := s.store.TransitionClaim(ctx, claim.ID, models.ClaimUnderReview, models.ClaimCreditRequested, ev)
		if err != nil {
			run.fail(claim.ID, utils.Persistence("store.transition_claim", err))
			continue
		}
		if !moved {
			run.summary.Skipped++
			continue
		}
		run.summary.Updated++
		run.logger.Info("claim advanced",
			slog.String("ticket_id", claim.ID),
			slog.String("shipment_id", claim.ShipmentID),
		)
		if err := s.notifyCreditRequested(ctx, claim); err != nil {
			run.warn(claim.ID, "notification failed: "+err.Error())
		}
	}
	return run.finish()
}

func (s *Service) notifyCreditRequested(ctx context.Context, claim models.ClaimTicket) error {
	if s.notifier == nil || len(s.opts.Recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Credit requested for claim %s", claim.ID)
	body := strings.Join([]string{
		fmt.Sprintf("Claim %s for shipment %s has been under review since %s.", claim.ID, claim.ShipmentID, claim.CreatedAt.UTC().Format("2006-01-02 15:04 MST")),
		fmt.Sprintf("It was moved to %s and is ready for a credit decision.", models.ClaimCreditRequested),
	}, "\n")
	_, err := s.notifier.Send(ctx, repo.Email{
		To:      s.opts.Recipients,
		Subject: subject,
		Text:    body,
	})
	return err
}

// ClaimSyncSweep mirrors settled claims into the monitoring records they belong to.
func (s *Service) ClaimSyncSweep(ctx context.Context) models.SweepSummary {
	run := s.begin(models.SweepClaimsSync)

	resolutions, err := s.store.ListClaimResolutions(ctx, s.opts.ClaimBatchSize)
	if err != nil {
		run.abort(ctx, utils.Persistence("store.list_claim_resolutions", err))
		return run.finish()
	}

	for _, res := range resolutions {
		if run.expired(ctx) {
			break
		}
		run.summary.Processed++
		to, ok := res.MirroredStatus()
		if !ok {
			run.warn(res.TicketID, utils.Integrity("claims.sync", "claim status "+string(res.ClaimStatus)+" is not settled").Error())
			run.summary.Skipped++
			continue
		}
		mirrored, err := s.store.MirrorClaimResolution(ctx, res.ShipmentID, to)
		if err != nil {
			run.fail(res.ShipmentID, utils.Persistence("store.mirror_claim_resolution", err))
			continue
		}
		if !mirrored {
			run.summary.Skipped++
			continue
		}
		run.summary.Updated++
		run.logger.Info("claim resolution mirrored",
			slog.String("shipment_id", res.ShipmentID),
			slog.String("ticket_id", res.TicketID),
			slog.String("from", string(res.CurrentStatus)),
			slog.String("to", string(to)),
		)
	}
	return run.finish()
}
