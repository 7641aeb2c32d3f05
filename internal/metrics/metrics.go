package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels sweeps that processed every item without error.
	OutcomeSuccess = "success"
	// OutcomePartial labels sweeps that finished with per-item errors or hit their budget.
	OutcomePartial = "partial"
	// OutcomeError labels sweeps that could not start (configuration or store failures).
	OutcomeError = "error"
)

var (
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimwatch",
			Name:      "sweeps_total",
			Help:      "Total number of sweeps run, partitioned by sweep and outcome.",
		},
		[]string{"sweep", "outcome"},
	)

	sweepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "claimwatch",
			Name:      "sweep_seconds",
			Help:      "Sweep wall-clock duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 180, 240, 300},
		},
		[]string{"sweep"},
	)

	sweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimwatch",
			Name:      "sweep_items_total",
			Help:      "Items handled by sweeps, partitioned by result (added, updated, skipped, deleted, errored).",
		},
		[]string{"sweep", "result"},
	)

	trackingLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimwatch",
			Name:      "tracking_lookups_total",
			Help:      "Carrier tracking lookups, partitioned by kind (create, poll) and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	assessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimwatch",
			Name:      "assessments_total",
			Help:      "Risk assessments produced, partitioned by source (heuristic, ai).",
		},
		[]string{"source"},
	)
)

// Register attaches claimwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		sweepsTotal,
		sweepDurationSeconds,
		sweepItemsTotal,
		trackingLookupsTotal,
		assessmentsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSweep records a sweep duration and outcome label.
func ObserveSweep(sweep string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomePartial:
	default:
		outcome = OutcomeSuccess
	}
	sweepsTotal.WithLabelValues(sweep, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	sweepDurationSeconds.WithLabelValues(sweep).Observe(duration.Seconds())
}

// AddSweepItems increments the per-result item counter. Zero counts are ignored.
func AddSweepItems(sweep, result string, n int) {
	if n <= 0 {
		return
	}
	sweepItemsTotal.WithLabelValues(sweep, result).Add(float64(n))
}

// ObserveTrackingLookup counts one tracking provider call.
func ObserveTrackingLookup(kind string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	trackingLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveAssessment counts one stored assessment by source.
func ObserveAssessment(source string) {
	assessmentsTotal.WithLabelValues(source).Inc()
}
