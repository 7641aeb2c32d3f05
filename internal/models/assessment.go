package models

import (
	"fmt"
	"strings"
	"time"
)

// StatusBadge is the headline state shown for a monitored shipment.
type StatusBadge string

const (
	BadgeMoving    StatusBadge = "MOVING"
	BadgeDelayed   StatusBadge = "DELAYED"
	BadgeWatchlist StatusBadge = "WATCHLIST"
	BadgeStalled   StatusBadge = "STALLED"
	BadgeStuck     StatusBadge = "STUCK"
	BadgeReturning StatusBadge = "RETURNING"
	BadgeLost      StatusBadge = "LOST"
)

var badgeSeverity = map[StatusBadge]int{
	BadgeMoving:    0,
	BadgeDelayed:   1,
	BadgeWatchlist: 2,
	BadgeStalled:   3,
	BadgeStuck:     4,
	BadgeReturning: 5,
	BadgeLost:      6,
}

// Severity orders badges from least to most severe. Unknown badges return -1.
func (b StatusBadge) Severity() int {
	if s, ok := badgeSeverity[b]; ok {
		return s
	}
	return -1
}

// ParseStatusBadge validates a badge received from an external provider.
func ParseStatusBadge(v string) (StatusBadge, error) {
	b := StatusBadge(strings.ToUpper(strings.TrimSpace(v)))
	if b.Severity() < 0 {
		return "", fmt.Errorf("unknown status badge %q", v)
	}
	return b, nil
}

// RiskLevel grades the likelihood that a shipment will not arrive.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels. Unknown levels return -1.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// ParseRiskLevel validates a risk level received from an external provider.
func ParseRiskLevel(v string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(v)))
	if r.Rank() < 0 {
		return "", fmt.Errorf("unknown risk level %q", v)
	}
	return r, nil
}

// AssessmentSource records which component produced an assessment.
type AssessmentSource string

const (
	SourceHeuristic AssessmentSource = "heuristic"
	SourceAI        AssessmentSource = "ai"
)

// MaxUrgency bounds the reshipment urgency score.
const MaxUrgency = 10.0

// Assessment is the risk classification stored on a monitoring record.
type Assessment struct {
	StatusBadge       StatusBadge      `json:"status_badge"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	Urgency           float64          `json:"urgency"`
	Confidence        float64          `json:"confidence"`
	Narrative         string           `json:"narrative"`
	CustomerSentiment string           `json:"customer_sentiment,omitempty"`
	NextMilestone     string           `json:"next_milestone,omitempty"`
	Source            AssessmentSource `json:"source"`
	AssessedAt        time.Time        `json:"assessed_at"`
}

// Validate checks the closed-set fields and numeric bounds.
func (a Assessment) Validate() error {
	if a.StatusBadge.Severity() < 0 {
		return fmt.Errorf("invalid status badge %q", a.StatusBadge)
	}
	if a.RiskLevel.Rank() < 0 {
		return fmt.Errorf("invalid risk level %q", a.RiskLevel)
	}
	if a.Urgency < 0 || a.Urgency > MaxUrgency {
		return fmt.Errorf("urgency %.2f out of range", a.Urgency)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of range", a.Confidence)
	}
	return nil
}
