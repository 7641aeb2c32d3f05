package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parcelguard/claimwatch/internal/models"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func delivered(id, carrier, option string, zone int, days float64) models.Shipment {
	label := now.Add(-20 * 24 * time.Hour)
	at := label.Add(time.Duration(days * float64(24*time.Hour)))
	return models.Shipment{
		ID:             id,
		Carrier:        carrier,
		ServiceOption:  option,
		Zone:           zone,
		LabelCreatedAt: label,
		DeliveredAt:    &at,
	}
}

func intl(id string, days float64) models.Shipment {
	sh := delivered(id, "DHL", "Express", 0, days)
	sh.OriginCountry = "US"
	sh.DestinationCountry = "CA"
	return sh
}

type fakeSource struct {
	shipments []models.Shipment
	since     time.Time
	err       error
}

func (f *fakeSource) ListDeliveredSince(_ context.Context, since time.Time) ([]models.Shipment, error) {
	f.since = since
	return f.shipments, f.err
}

type fakeStore struct {
	upsert  func(entry models.BenchmarkEntry) error
	retired []time.Time
}

func (f *fakeStore) UpsertBenchmark(_ context.Context, entry models.BenchmarkEntry) error {
	if f.upsert == nil {
		return nil
	}
	return f.upsert(entry)
}

func (f *fakeStore) DeleteBenchmarksBefore(_ context.Context, before time.Time) (int, error) {
	f.retired = append(f.retired, before)
	return 1, nil
}

func TestAggregateExcludesOutliers(t *testing.T) {
	agg := Aggregate([]models.Shipment{
		delivered("a", "UPS", "Ground", 5, 4),
		delivered("b", "UPS", "Ground", 5, 5),
		delivered("neg", "UPS", "Ground", 5, -1),
		delivered("zero", "UPS", "Ground", 5, 0),
		delivered("slow", "UPS", "Ground", 5, 31),
		delivered("nozone", "UPS", "Ground", 0, 3),
	}, now)

	if agg.Samples != 2 || agg.Excluded != 4 {
		t.Fatalf("samples=%d excluded=%d", agg.Samples, agg.Excluded)
	}
	snap := NewSnapshot(agg.Entries)
	avg, ok := snap.CarrierZone("ups", 5)
	if !ok || avg != 4.5 {
		t.Fatalf("CarrierZone = %v, %v", avg, ok)
	}
	avg, ok = snap.ServiceZone("GROUND", 5)
	if !ok || avg != 4.5 {
		t.Fatalf("ServiceZone = %v, %v", avg, ok)
	}
	if _, ok := snap.CarrierZone("UPS", 4); ok {
		t.Fatal("zone without samples must not be trusted")
	}
}

func TestAggregateRoundsToOneDecimal(t *testing.T) {
	agg := Aggregate([]models.Shipment{
		delivered("a", "USPS", "Priority", 2, 1),
		delivered("b", "USPS", "Priority", 2, 2),
		delivered("c", "USPS", "Priority", 2, 2),
	}, now)
	snap := NewSnapshot(agg.Entries)
	if avg, _ := snap.CarrierZone("USPS", 2); avg != 1.7 {
		t.Fatalf("expected 1.7, got %v", avg)
	}
}

func TestAggregateInternationalMinimumSamples(t *testing.T) {
	agg := Aggregate([]models.Shipment{
		intl("a", 8), intl("b", 10),
		intl("slow", 61),
	}, now)
	if agg.Skipped != 1 || agg.Excluded != 1 {
		t.Fatalf("skipped=%d excluded=%d", agg.Skipped, agg.Excluded)
	}
	for _, e := range agg.Entries {
		if e.Kind == models.BenchmarkInternationalRoute {
			t.Fatalf("route with <3 samples published: %+v", e)
		}
	}

	agg = Aggregate([]models.Shipment{intl("a", 8), intl("b", 10), intl("c", 12), intl("d", 55)}, now)
	snap := NewSnapshot(agg.Entries)
	avg, ok := snap.Route("dhl", "us", "ca")
	if !ok || avg != 21.3 {
		t.Fatalf("Route = %v, %v", avg, ok)
	}
	if _, ok := snap.CarrierZone("DHL", 0); ok {
		t.Fatal("international samples must not feed zone entries")
	}
}

func TestBuildContinuesPastFailingGroup(t *testing.T) {
	source := &fakeSource{shipments: []models.Shipment{
		delivered("a", "UPS", "Ground", 5, 4),
		delivered("b", "FedEx", "Home", 3, 3),
	}}
	var written []string
	store := &fakeStore{upsert: func(entry models.BenchmarkEntry) error {
		if entry.Key == "FEDEX" {
			return errors.New("disk full")
		}
		written = append(written, string(entry.Kind)+":"+entry.Key)
		return nil
	}}

	res, err := NewBuilder(nil, source, store, 0).Build(context.Background(), now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !source.since.Equal(now.Add(-DefaultWindow)) {
		t.Fatalf("unexpected window start %v", source.since)
	}
	if res.Written != 3 || len(res.Errors) != 1 {
		t.Fatalf("written=%d errors=%v", res.Written, res.Errors)
	}
	if res.Errors[0].Key != "FEDEX" {
		t.Fatalf("unexpected failing group %+v", res.Errors[0])
	}
	if len(written) != 3 {
		t.Fatalf("expected remaining groups to be written, got %v", written)
	}
	if len(store.retired) != 0 {
		t.Fatal("a partial build must not retire older entries")
	}
}

func TestBuildRetiresEntriesOutsideTheWindow(t *testing.T) {
	source := &fakeSource{shipments: []models.Shipment{delivered("a", "UPS", "Ground", 5, 4)}}
	store := &fakeStore{}

	res, err := NewBuilder(nil, source, store, 0).Build(context.Background(), now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(store.retired) != 1 || !store.retired[0].Equal(now) {
		t.Fatalf("expected entries computed before %v to be retired, got %v", now, store.retired)
	}
	if res.Retired != 1 {
		t.Fatalf("retired = %d", res.Retired)
	}
}

func TestBuildSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	_, err := NewBuilder(nil, source, &fakeStore{}, 0).Build(context.Background(), now)
	if err == nil {
		t.Fatal("expected error")
	}
}
