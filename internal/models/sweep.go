package models

import "time"

// SweepName identifies an externally triggered batch run.
type SweepName string

const (
	SweepBenchmarks    SweepName = "benchmarks"
	SweepEntry         SweepName = "entry"
	SweepReassess      SweepName = "reassess"
	SweepClaimsAdvance SweepName = "claims-advance"
	SweepClaimsSync    SweepName = "claims-sync"
)

// SweepNames lists every sweep the trigger API accepts.
var SweepNames = []SweepName{SweepBenchmarks, SweepEntry, SweepReassess, SweepClaimsAdvance, SweepClaimsSync}

// ParseSweepName maps a trigger path segment onto a sweep.
func ParseSweepName(v string) (SweepName, bool) {
	for _, name := range SweepNames {
		if string(name) == v {
			return name, true
		}
	}
	return "", false
}

// SweepSummary is the JSON report returned by every sweep, including partial failures.
type SweepSummary struct {
	Sweep     SweepName `json:"sweep"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Processed int       `json:"processed"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Deleted   int       `json:"deleted"`
	Errored   int       `json:"errored"`
	Truncated bool      `json:"truncated"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings,omitempty"`
}
