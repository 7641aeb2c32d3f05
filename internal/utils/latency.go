package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded ring of recent durations per key and computes percentiles.
// Sweeps use it to report how close each run comes to its wall-clock budget.
type LatencyTracker struct {
	mu      sync.RWMutex
	rings   map[string]*ring
	maxSize int
}

type ring struct {
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker storing up to maxSize samples per key.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{rings: make(map[string]*ring), maxSize: maxSize}
}

// Observe records a new duration under key, overwriting the oldest sample once full.
func (l *LatencyTracker) Observe(key string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rings[key]
	if !ok {
		r = &ring{samples: make([]time.Duration, l.maxSize)}
		l.rings[key] = r
	}
	r.samples[r.next] = d
	r.next = (r.next + 1) % l.maxSize
	if r.next == 0 {
		r.full = true
	}
}

// Percentile returns the percentile (0-100) duration for key. Returns zero if no samples.
func (l *LatencyTracker) Percentile(key string, p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.rings[key]
	if !ok {
		return 0
	}
	sorted := append([]time.Duration(nil), r.values()...)
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}

// Count returns number of samples recorded for key.
func (l *LatencyTracker) Count(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.rings[key]; ok {
		return len(r.values())
	}
	return 0
}

func (r *ring) values() []time.Duration {
	if r.full {
		return r.samples
	}
	return r.samples[:r.next]
}
