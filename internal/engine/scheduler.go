package engine

import (
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

// Scheduler maps a risk picture onto the next re-check time.
type Scheduler struct {
	Urgent   time.Duration
	Elevated time.Duration
	Default  time.Duration
}

// DefaultScheduler returns the 1h/4h/24h tiers.
func DefaultScheduler() Scheduler {
	return Scheduler{Urgent: time.Hour, Elevated: 4 * time.Hour, Default: 24 * time.Hour}
}

// ScheduleInput is the state the next check depends on.
type ScheduleInput struct {
	Assessment        *models.Assessment
	DaysSinceLastScan int
	DaysInTransit     int
}

// NextCheck returns now plus the interval for the input's tier. The result is never before now.
func (s Scheduler) NextCheck(now time.Time, in ScheduleInput) time.Time {
	return now.Add(s.Interval(in))
}

// Interval picks the tier: high or critical risk, or 15+ silent days, is urgent; 8+ days in
// transit or medium risk is elevated.
func (s Scheduler) Interval(in ScheduleInput) time.Duration {
	def := DefaultScheduler()
	urgent := positiveOr(s.Urgent, def.Urgent)
	elevated := positiveOr(s.Elevated, def.Elevated)
	fallback := positiveOr(s.Default, def.Default)

	rank := -1
	if in.Assessment != nil {
		rank = in.Assessment.RiskLevel.Rank()
	}
	switch {
	case rank >= models.RiskHigh.Rank() || in.DaysSinceLastScan >= 15:
		return urgent
	case in.DaysInTransit >= 8 || rank == models.RiskMedium.Rank():
		return elevated
	default:
		return fallback
	}
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
