package benchmark

import (
	"testing"

	"github.com/parcelguard/claimwatch/internal/models"
)

func TestSnapshotTypicalPrefersCarrierZone(t *testing.T) {
	carrier := models.BenchmarkEntry{Kind: models.BenchmarkCarrierService, Key: "CARRIERX"}
	carrier.Zones[4] = models.ZoneStat{AvgDays: 6.0, Samples: 50}
	option := models.BenchmarkEntry{Kind: models.BenchmarkShipOption, Key: "GROUND"}
	option.Zones[4] = models.ZoneStat{AvgDays: 7.5, Samples: 20}
	option.Zones[6] = models.ZoneStat{AvgDays: 9.0, Samples: 4}
	route := models.BenchmarkEntry{Kind: models.BenchmarkInternationalRoute, Key: "CARRIERX|US|GB", Route: models.ZoneStat{AvgDays: 11.2, Samples: 3}}

	snap := NewSnapshot([]models.BenchmarkEntry{carrier, option, route})
	if snap.Len() != 3 {
		t.Fatalf("Len = %d", snap.Len())
	}

	sh := models.Shipment{Carrier: "CarrierX", ServiceOption: "Ground", Zone: 5}
	if avg, basis := snap.Typical(sh); avg != 6.0 || basis != BasisCarrierZone {
		t.Fatalf("Typical = %v %s", avg, basis)
	}
	sh.Zone = 7
	if avg, basis := snap.Typical(sh); avg != 9.0 || basis != BasisServiceZone {
		t.Fatalf("Typical fallback = %v %s", avg, basis)
	}
	sh.Zone = 2
	if _, basis := snap.Typical(sh); basis != BasisNone {
		t.Fatalf("expected no benchmark, got %s", basis)
	}

	sh = models.Shipment{Carrier: "CarrierX", OriginCountry: "US", DestinationCountry: "GB", Zone: 5}
	if avg, basis := snap.Typical(sh); avg != 11.2 || basis != BasisRoute {
		t.Fatalf("Typical route = %v %s", avg, basis)
	}
	sh.DestinationCountry = "FR"
	if _, basis := snap.Typical(sh); basis != BasisNone {
		t.Fatalf("international shipments must not fall back to zones, got %s", basis)
	}
}

func TestNilSnapshot(t *testing.T) {
	var snap *Snapshot
	if _, ok := snap.CarrierZone("UPS", 1); ok {
		t.Fatal("nil snapshot should report no data")
	}
	if _, basis := snap.Typical(models.Shipment{Carrier: "UPS", Zone: 1}); basis != BasisNone {
		t.Fatalf("unexpected basis %s", basis)
	}
}
