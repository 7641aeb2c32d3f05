package benchmark

import (
	"context"
	"fmt"

	"github.com/parcelguard/claimwatch/internal/models"
)

// Lister loads all persisted benchmark entries.
type Lister interface {
	ListBenchmarks(ctx context.Context) ([]models.BenchmarkEntry, error)
}

// Snapshot is a read-only view of benchmark entries, loaded once per sweep.
type Snapshot struct {
	carriers map[string]models.BenchmarkEntry
	options  map[string]models.BenchmarkEntry
	routes   map[string]models.BenchmarkEntry
}

// NewSnapshot indexes entries by kind and key.
func NewSnapshot(entries []models.BenchmarkEntry) *Snapshot {
	s := &Snapshot{
		carriers: make(map[string]models.BenchmarkEntry),
		options:  make(map[string]models.BenchmarkEntry),
		routes:   make(map[string]models.BenchmarkEntry),
	}
	for _, e := range entries {
		switch e.Kind {
		case models.BenchmarkCarrierService:
			s.carriers[normalizeKey(e.Key)] = e
		case models.BenchmarkShipOption:
			s.options[normalizeKey(e.Key)] = e
		case models.BenchmarkInternationalRoute:
			s.routes[normalizeKey(e.Key)] = e
		}
	}
	return s
}

// LoadSnapshot reads every entry from lister.
func LoadSnapshot(ctx context.Context, lister Lister) (*Snapshot, error) {
	entries, err := lister.ListBenchmarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load benchmarks: %w", err)
	}
	return NewSnapshot(entries), nil
}

// Len returns the number of indexed entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.carriers) + len(s.options) + len(s.routes)
}

// CarrierZone returns the average transit days for a carrier and zone.
func (s *Snapshot) CarrierZone(carrier string, zone int) (float64, bool) {
	if s == nil {
		return 0, false
	}
	return zoneAvg(s.carriers, carrier, zone)
}

// ServiceZone returns the average transit days for a service option and zone.
func (s *Snapshot) ServiceZone(option string, zone int) (float64, bool) {
	if s == nil {
		return 0, false
	}
	return zoneAvg(s.options, option, zone)
}

// Route returns the average transit days for an international route.
func (s *Snapshot) Route(carrier, origin, destination string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	e, ok := s.routes[models.RouteKey(carrier, origin, destination)]
	if !ok || !e.Route.Trusted() || e.Route.Samples < MinRouteSamples {
		return 0, false
	}
	return e.Route.AvgDays, true
}

// Basis names the benchmark an expectation was derived from.
type Basis string

const (
	BasisRoute       Basis = "route"
	BasisCarrierZone Basis = "carrier_zone"
	BasisServiceZone Basis = "service_zone"
	BasisNone        Basis = "none"
)

// Typical returns the expected transit days for a shipment: the route figure for international
// shipments; otherwise carrier+zone, then service option+zone.
func (s *Snapshot) Typical(sh models.Shipment) (float64, Basis) {
	if sh.International() {
		if avg, ok := s.Route(sh.Carrier, sh.OriginCountry, sh.DestinationCountry); ok {
			return avg, BasisRoute
		}
		return 0, BasisNone
	}
	if avg, ok := s.CarrierZone(sh.Carrier, sh.Zone); ok {
		return avg, BasisCarrierZone
	}
	if avg, ok := s.ServiceZone(sh.ServiceOption, sh.Zone); ok {
		return avg, BasisServiceZone
	}
	return 0, BasisNone
}

func zoneAvg(index map[string]models.BenchmarkEntry, key string, zone int) (float64, bool) {
	e, ok := index[normalizeKey(key)]
	if !ok {
		return 0, false
	}
	stat, ok := e.Zone(zone)
	if !ok || stat.AvgDays <= 0 {
		return 0, false
	}
	return stat.AvgDays, true
}
