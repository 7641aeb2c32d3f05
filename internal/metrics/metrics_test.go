package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwiceIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestObserveSweepNormalizesOutcome(t *testing.T) {
	before := testutil.ToFloat64(sweepsTotal.WithLabelValues("entry", OutcomeSuccess))
	ObserveSweep("entry", time.Second, "weird")
	after := testutil.ToFloat64(sweepsTotal.WithLabelValues("entry", OutcomeSuccess))
	if after != before+1 {
		t.Fatalf("expected unknown outcome to count as success: %v -> %v", before, after)
	}
}

func TestTrackingLookupOutcome(t *testing.T) {
	before := testutil.ToFloat64(trackingLookupsTotal.WithLabelValues("create", OutcomeError))
	ObserveTrackingLookup("create", errors.New("boom"))
	if got := testutil.ToFloat64(trackingLookupsTotal.WithLabelValues("create", OutcomeError)); got != before+1 {
		t.Fatalf("error lookup not counted: %v", got)
	}
}

func TestAddSweepItemsIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(sweepItemsTotal.WithLabelValues("reassess", "updated"))
	AddSweepItems("reassess", "updated", 0)
	AddSweepItems("reassess", "updated", 3)
	if got := testutil.ToFloat64(sweepItemsTotal.WithLabelValues("reassess", "updated")); got != before+3 {
		t.Fatalf("unexpected counter %v", got)
	}
}
