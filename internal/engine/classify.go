package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/parcelguard/claimwatch/internal/extractors"
	"github.com/parcelguard/claimwatch/internal/models"
)

// ReturnLostDays is the silence after which a returning shipment is considered lost.
const ReturnLostDays = 30

// ClassifyInput is everything the heuristic classifier looks at.
type ClassifyInput struct {
	Signals             extractors.Signals
	DaysInTransit       int
	DaysSinceLastUpdate int
	TypicalDays         float64
}

// Classify produces a heuristic assessment from checkpoint signals and elapsed time.
func Classify(in ClassifyInput, now time.Time) models.Assessment {
	silence := in.DaysSinceLastUpdate
	if silence < 0 {
		silence = 0
	}
	ratio := 0.0
	if in.TypicalDays > 0 {
		ratio = float64(in.DaysInTransit) / in.TypicalDays
	}

	negative := len(in.Signals.NegativeTypes)
	if negative > 2 {
		negative = 2
	}

	a := models.Assessment{
		StatusBadge: badgeFor(in.Signals, silence, ratio),
		RiskLevel:   riskFor(in.Signals, silence, ratio, negative),
		Urgency:     urgencyFor(in.Signals, silence, negative),
		Confidence:  confidenceFor(in.Signals, in.TypicalDays > 0),
		Source:      models.SourceHeuristic,
		AssessedAt:  now.UTC(),
	}
	a.Narrative = narrative(in, silence)
	a.CustomerSentiment = sentimentFor(a.RiskLevel)
	a.NextMilestone = nextMilestone(in.Signals.Latest)
	return a
}

// finalMileAssessment is returned for shipments that are out for delivery without a later problem.
func finalMileAssessment(sig extractors.Signals, now time.Time) models.Assessment {
	return models.Assessment{
		StatusBadge:       models.BadgeMoving,
		RiskLevel:         models.RiskLow,
		Urgency:           0,
		Confidence:        0.9,
		Narrative:         "Out for delivery" + lastScanSuffix(sig.Latest),
		CustomerSentiment: "positive",
		NextMilestone:     "Delivery",
		Source:            models.SourceHeuristic,
		AssessedAt:        now.UTC(),
	}
}

func badgeFor(sig extractors.Signals, silence int, ratio float64) models.StatusBadge {
	if sig.LossLanguage {
		return models.BadgeLost
	}
	if sig.Returning {
		if silence >= ReturnLostDays {
			return models.BadgeLost
		}
		return models.BadgeReturning
	}

	var badge models.StatusBadge
	switch {
	case silence < 2:
		badge = models.BadgeMoving
	case silence < 5:
		badge = models.BadgeDelayed
	case silence < 8:
		badge = models.BadgeWatchlist
	case silence < 15:
		badge = models.BadgeStalled
	case silence < 30:
		badge = models.BadgeStuck
	default:
		badge = models.BadgeLost
	}
	if ratio >= 1.3 && badge == models.BadgeMoving {
		badge = models.BadgeDelayed
	}
	return badge
}

func riskFor(sig extractors.Signals, silence int, ratio float64, negative int) models.RiskLevel {
	points := 0
	switch {
	case silence >= 15:
		points += 3
	case silence >= 8:
		points += 2
	case silence >= 4:
		points++
	}
	switch {
	case ratio >= 2:
		points += 2
	case ratio >= 1.3:
		points++
	}
	points += negative
	if sig.LossLanguage {
		points += 3
	}
	if sig.RecentProgress {
		points--
	}

	switch {
	case points >= 5:
		return models.RiskCritical
	case points >= 3:
		return models.RiskHigh
	case points >= 1:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func urgencyFor(sig extractors.Signals, silence, negative int) float64 {
	u := float64(silence)/3 + float64(negative)
	if sig.LossLanguage {
		u += 4
	}
	return clamp(math.Round(u*10)/10, 0, models.MaxUrgency)
}

func confidenceFor(sig extractors.Signals, hasBenchmark bool) float64 {
	depth := sig.Depth
	if depth > 8 {
		depth = 8
	}
	c := 0.4 + 0.05*float64(depth)
	if hasBenchmark {
		c += 0.15
	}
	return clamp(math.Round(c*100)/100, 0.3, 0.95)
}

func sentimentFor(level models.RiskLevel) string {
	switch level {
	case models.RiskCritical:
		return "frustrated"
	case models.RiskHigh:
		return "concerned"
	default:
		return "neutral"
	}
}

func nextMilestone(latest *models.Checkpoint) string {
	if latest == nil {
		return "First carrier scan"
	}
	switch latest.Type {
	case models.CheckpointLabel:
		return "Carrier pickup"
	case models.CheckpointPickup:
		return "Hub scan"
	case models.CheckpointHub:
		return "Arrival at local facility"
	case models.CheckpointLocal:
		return "Out for delivery"
	case models.CheckpointOutForDelivery:
		return "Delivery"
	case models.CheckpointException:
		return "Carrier resolution of exception"
	case models.CheckpointAttempt:
		return "Redelivery attempt"
	case models.CheckpointReturn:
		return "Return to sender"
	default:
		return "Next carrier scan"
	}
}

func narrative(in ClassifyInput, silence int) string {
	var b strings.Builder
	if in.Signals.Latest == nil {
		fmt.Fprintf(&b, "No carrier scans recorded; %d days since label creation", in.DaysInTransit)
	} else {
		fmt.Fprintf(&b, "%d days since last carrier scan, %d days in transit", silence, in.DaysInTransit)
	}
	if in.TypicalDays > 0 {
		fmt.Fprintf(&b, " (typical %.1f days)", in.TypicalDays)
	}
	if in.Signals.LossLanguage {
		b.WriteString("; carrier reports the parcel cannot be located")
	} else if in.Signals.Returning {
		b.WriteString("; parcel is returning to sender")
	}
	b.WriteString(lastScanSuffix(in.Signals.Latest))
	return b.String()
}

func lastScanSuffix(latest *models.Checkpoint) string {
	if latest == nil || latest.Description == "" {
		return ""
	}
	if latest.Location != "" {
		return fmt.Sprintf(". Last scan: %s (%s)", latest.Description, latest.Location)
	}
	return fmt.Sprintf(". Last scan: %s", latest.Description)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
