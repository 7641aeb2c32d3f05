package models

import (
	"strings"
	"time"
)

// ZoneSlots is the number of carrier zones tracked per benchmark entry.
const ZoneSlots = 10

// BenchmarkKind identifies how a benchmark entry is keyed.
type BenchmarkKind string

const (
	BenchmarkCarrierService     BenchmarkKind = "carrier_service"
	BenchmarkShipOption         BenchmarkKind = "ship_option"
	BenchmarkInternationalRoute BenchmarkKind = "international_route"
)

// ZoneStat holds an average transit time and the number of samples behind it.
type ZoneStat struct {
	AvgDays float64 `json:"avg_days"`
	Samples int     `json:"samples"`
}

// Trusted reports whether the stat is backed by at least one sample.
func (z ZoneStat) Trusted() bool {
	return z.Samples > 0
}

// BenchmarkEntry captures expected transit statistics for a carrier, service option or route.
type BenchmarkEntry struct {
	Kind       BenchmarkKind
	Key        string
	Zones      [ZoneSlots]ZoneStat
	Route      ZoneStat
	ComputedAt time.Time
}

// Zone returns the stat for a 1-based zone number.
func (e BenchmarkEntry) Zone(zone int) (ZoneStat, bool) {
	if zone < 1 || zone > ZoneSlots {
		return ZoneStat{}, false
	}
	stat := e.Zones[zone-1]
	return stat, stat.Trusted()
}

// RouteKey builds the international_route key for a carrier and country pair.
func RouteKey(carrier, origin, destination string) string {
	return strings.ToUpper(strings.TrimSpace(carrier)) + "|" +
		strings.ToUpper(strings.TrimSpace(origin)) + "|" +
		strings.ToUpper(strings.TrimSpace(destination))
}
