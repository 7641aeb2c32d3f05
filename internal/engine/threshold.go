package engine

import (
	"time"

	"github.com/parcelguard/claimwatch/internal/benchmark"
	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// ThresholdPolicy holds the enrollment buffer and the fallbacks used without a benchmark.
type ThresholdPolicy struct {
	Buffer                float64
	DomesticFallback      int
	InternationalFallback int
}

// DefaultThresholdPolicy returns the production enrollment policy.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{Buffer: 0.30, DomesticFallback: 8, InternationalFallback: 12}
}

// Threshold is the number of transit days after which a shipment is enrolled.
type Threshold struct {
	Days        int
	Basis       benchmark.Basis
	TypicalDays float64
}

// EntryThreshold derives the enrollment threshold for a shipment: ceil(avg × (1+buffer)) over
// the most specific trusted benchmark, or the domestic/international fallback.
func EntryThreshold(sh models.Shipment, snap *benchmark.Snapshot, policy ThresholdPolicy) Threshold {
	avg, basis := snap.Typical(sh)
	if basis == benchmark.BasisNone {
		days := policy.DomesticFallback
		if sh.International() {
			days = policy.InternationalFallback
		}
		return Threshold{Days: days, Basis: basis}
	}
	return Threshold{
		Days:        utils.CeilInt(avg * (1 + policy.Buffer)),
		Basis:       basis,
		TypicalDays: avg,
	}
}

// Elapsed returns whole days in transit since the label and whole days since the last scan.
// Without a scan the label date is the anchor.
func Elapsed(sh models.Shipment, lastScan *time.Time, now time.Time) (inTransit, sinceUpdate int) {
	inTransit = utils.WholeDaysBetween(sh.LabelCreatedAt, now)
	anchor := sh.LabelCreatedAt
	if lastScan != nil && !lastScan.IsZero() {
		anchor = *lastScan
	}
	return inTransit, utils.WholeDaysBetween(anchor, now)
}
