package extractors

import (
	"strings"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

// RecentProgressWindow bounds how old a HUB or LOCAL scan may be to count as recent progress.
const RecentProgressWindow = 3 * 24 * time.Hour

// FinalMileWindow bounds how old an out-for-delivery scan may be to still count as final mile.
const FinalMileWindow = 2 * 24 * time.Hour

// Signals summarises a checkpoint history for risk classification.
type Signals struct {
	Latest         *models.Checkpoint
	Depth          int
	Delivered      bool
	FinalMile      bool
	Returning      bool
	LossLanguage   bool
	NegativeTypes  []models.CheckpointType
	RecentProgress bool
}

// LastScanAt returns the time of the newest checkpoint, or nil for an empty history.
func (s Signals) LastScanAt() *time.Time {
	if s.Latest == nil {
		return nil
	}
	t := s.Latest.OccurredAt
	return &t
}

// Extract derives signals from checkpoints. The slice may be in any order.
func (e *CheckpointExtractor) Extract(checkpoints []models.Checkpoint, now time.Time) Signals {
	sig := Signals{Depth: len(checkpoints)}
	if len(checkpoints) == 0 {
		return sig
	}

	seenNegative := make(map[models.CheckpointType]struct{})
	var latestMeaningful *models.Checkpoint
	for i := range checkpoints {
		cp := &checkpoints[i]
		if sig.Latest == nil || cp.OccurredAt.After(sig.Latest.OccurredAt) {
			sig.Latest = cp
		}
		if cp.Type != models.CheckpointUnknown && cp.Type != models.CheckpointLabel {
			if latestMeaningful == nil || newerOrNegativeTie(cp, latestMeaningful) {
				latestMeaningful = cp
			}
		}

		switch {
		case cp.Type == models.CheckpointDelivered:
			sig.Delivered = true
		case cp.Type == models.CheckpointReturn:
			sig.Returning = true
		}
		if cp.Type.Negative() {
			if _, ok := seenNegative[cp.Type]; !ok {
				seenNegative[cp.Type] = struct{}{}
				sig.NegativeTypes = append(sig.NegativeTypes, cp.Type)
			}
		}
		if (cp.Type == models.CheckpointHub || cp.Type == models.CheckpointLocal) &&
			!cp.OccurredAt.After(now) && now.Sub(cp.OccurredAt) <= RecentProgressWindow {
			sig.RecentProgress = true
		}
		if containsAny(cp.Description, e.lossPhrases) {
			sig.LossLanguage = true
		}
	}

	latest := *sig.Latest
	sig.Latest = &latest
	sig.FinalMile = latestMeaningful != nil && latestMeaningful.Type == models.CheckpointOutForDelivery &&
		now.Sub(latestMeaningful.OccurredAt) <= FinalMileWindow
	return sig
}

// newerOrNegativeTie prefers the newer checkpoint, and on equal timestamps the negative one, so
// an exception logged alongside an out-for-delivery scan is not hidden.
func newerOrNegativeTie(a, b *models.Checkpoint) bool {
	if a.OccurredAt.After(b.OccurredAt) {
		return true
	}
	return a.OccurredAt.Equal(b.OccurredAt) && a.Type.Negative() && !b.Type.Negative()
}

// HasLossLanguage reports whether a free-text scan description admits the parcel is lost.
func (e *CheckpointExtractor) HasLossLanguage(description string) bool {
	return strings.TrimSpace(description) != "" && containsAny(description, e.lossPhrases)
}
