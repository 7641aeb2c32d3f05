package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/parcelguard/claimwatch/internal/extractors"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
)

// maxContextScans bounds the checkpoint history sent to the AI provider.
const maxContextScans = 20

// AssessmentClient describes the AI assessment provider used by the pipeline.
type AssessmentClient interface {
	Assess(ctx context.Context, req repo.AssessmentRequest) (models.Assessment, error)
}

// Pipeline turns a shipment's checkpoint history into a risk assessment.
type Pipeline struct {
	logger    *slog.Logger
	extractor *extractors.CheckpointExtractor
	ai        AssessmentClient
}

// NewPipeline constructs a pipeline. ai may be nil, in which case only the heuristic runs.
func NewPipeline(logger *slog.Logger, extractor *extractors.CheckpointExtractor, ai AssessmentClient) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extractors.NewCheckpointExtractor(logger)
	}
	return &Pipeline{logger: logger, extractor: extractor, ai: ai}
}

// AssessInput is the per-shipment input to Assess.
type AssessInput struct {
	Shipment    models.Shipment
	Checkpoints []models.Checkpoint
	TypicalDays float64
}

// Outcome is the result of Assess. When Delivered is set the caller must drop the monitoring
// record and Assessment is empty.
type Outcome struct {
	Delivered           bool
	FinalMile           bool
	Signals             extractors.Signals
	DaysInTransit       int
	DaysSinceLastUpdate int
	Assessment          models.Assessment
	Warning             string
}

// Signals exposes the extractor so callers can inspect history without a full assessment.
func (p *Pipeline) Signals(checkpoints []models.Checkpoint, now time.Time) extractors.Signals {
	return p.extractor.Extract(checkpoints, now)
}

// Assess classifies a shipment. Provider failures never fail the assessment: the heuristic
// result is returned with Warning set.
func (p *Pipeline) Assess(ctx context.Context, in AssessInput, now time.Time) Outcome {
	sig := p.extractor.Extract(in.Checkpoints, now)
	out := Outcome{Signals: sig}
	out.DaysInTransit, out.DaysSinceLastUpdate = Elapsed(in.Shipment, sig.LastScanAt(), now)

	if sig.Delivered {
		out.Delivered = true
		return out
	}
	if sig.FinalMile {
		out.FinalMile = true
		out.Assessment = finalMileAssessment(sig, now)
		return out
	}

	heuristic := Classify(ClassifyInput{
		Signals:             sig,
		DaysInTransit:       out.DaysInTransit,
		DaysSinceLastUpdate: out.DaysSinceLastUpdate,
		TypicalDays:         in.TypicalDays,
	}, now)
	out.Assessment = heuristic

	if p.ai == nil {
		return out
	}

	req := buildAssessmentRequest(in, out, heuristic)
	ai, err := p.ai.Assess(ctx, req)
	if err != nil {
		out.Warning = fmt.Sprintf("ai assessment for %s failed, using heuristic: %v", in.Shipment.ID, err)
		p.logger.Warn("ai assessment failed",
			slog.String("shipment_id", in.Shipment.ID),
			slog.Any("error", err),
		)
		return out
	}
	out.Assessment = Merge(heuristic, ai)
	return out
}

// Merge combines an AI assessment with the heuristic one. Severity fields take the more severe
// of the two; descriptive fields come from the AI when present.
func Merge(heuristic, ai models.Assessment) models.Assessment {
	merged := ai
	merged.Source = models.SourceAI
	if heuristic.StatusBadge.Severity() > ai.StatusBadge.Severity() {
		merged.StatusBadge = heuristic.StatusBadge
	}
	if heuristic.RiskLevel.Rank() > ai.RiskLevel.Rank() {
		merged.RiskLevel = heuristic.RiskLevel
	}
	if heuristic.Urgency > ai.Urgency {
		merged.Urgency = heuristic.Urgency
	}
	if merged.Narrative == "" {
		merged.Narrative = heuristic.Narrative
	}
	if merged.CustomerSentiment == "" {
		merged.CustomerSentiment = heuristic.CustomerSentiment
	}
	if merged.NextMilestone == "" {
		merged.NextMilestone = heuristic.NextMilestone
	}
	if merged.AssessedAt.IsZero() {
		merged.AssessedAt = heuristic.AssessedAt
	}
	return merged
}

func buildAssessmentRequest(in AssessInput, out Outcome, heuristic models.Assessment) repo.AssessmentRequest {
	scans := make([]repo.AssessmentScan, 0, min(len(in.Checkpoints), maxContextScans))
	for _, cp := range newestFirst(in.Checkpoints) {
		if len(scans) == maxContextScans {
			break
		}
		scans = append(scans, repo.AssessmentScan{
			OccurredAt:  cp.OccurredAt,
			Type:        string(cp.Type),
			Description: cp.Description,
			Location:    cp.Location,
		})
	}
	sh := in.Shipment
	return repo.AssessmentRequest{
		ShipmentID:          sh.ID,
		TrackingNumber:      sh.TrackingNumber,
		Carrier:             sh.Carrier,
		International:       sh.International(),
		OriginCountry:       sh.OriginCountry,
		DestinationCountry:  sh.DestinationCountry,
		DaysInTransit:       out.DaysInTransit,
		DaysSinceLastUpdate: out.DaysSinceLastUpdate,
		TypicalTransitDays:  in.TypicalDays,
		Checkpoints:         scans,
		Heuristic:           heuristic,
		Fingerprint:         fingerprint(out),
	}
}

// fingerprint changes whenever the history grows or another day of silence passes.
func fingerprint(out Outcome) string {
	latest := int64(0)
	if out.Signals.Latest != nil {
		latest = out.Signals.Latest.OccurredAt.Unix()
	}
	return fmt.Sprintf("%d-%d-%d", latest, out.Signals.Depth, out.DaysSinceLastUpdate)
}

func newestFirst(cps []models.Checkpoint) []models.Checkpoint {
	sorted := append([]models.Checkpoint(nil), cps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})
	return sorted
}
