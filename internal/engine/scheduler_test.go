package engine

import (
	"testing"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

func TestNextCheckTiers(t *testing.T) {
	s := DefaultScheduler()
	now := time.Date(2024, 3, 21, 12, 0, 0, 0, time.UTC)
	high := &models.Assessment{RiskLevel: models.RiskHigh}
	medium := &models.Assessment{RiskLevel: models.RiskMedium}
	low := &models.Assessment{RiskLevel: models.RiskLow}

	cases := []struct {
		name string
		in   ScheduleInput
		want time.Duration
	}{
		{"high risk", ScheduleInput{Assessment: high}, time.Hour},
		{"long silence", ScheduleInput{Assessment: low, DaysSinceLastScan: 15}, time.Hour},
		{"long transit", ScheduleInput{Assessment: low, DaysInTransit: 8}, 4 * time.Hour},
		{"medium risk", ScheduleInput{Assessment: medium}, 4 * time.Hour},
		{"quiet", ScheduleInput{Assessment: low, DaysInTransit: 3}, 24 * time.Hour},
		{"no assessment", ScheduleInput{}, 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.NextCheck(now, tc.in); !got.Equal(now.Add(tc.want)) {
				t.Fatalf("NextCheck = %v, want %v", got, now.Add(tc.want))
			}
		})
	}
}

func TestNextCheckNeverInPast(t *testing.T) {
	s := Scheduler{Urgent: -time.Hour, Elevated: 0, Default: -time.Minute}
	now := time.Now()
	for _, in := range []ScheduleInput{
		{Assessment: &models.Assessment{RiskLevel: models.RiskCritical}},
		{DaysInTransit: 9},
		{},
	} {
		if got := s.NextCheck(now, in); !got.After(now) {
			t.Fatalf("NextCheck returned %v for %+v", got, in)
		}
	}
}
