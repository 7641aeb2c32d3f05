package extractors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/repo"
)

// Rule maps raw carrier scan fields onto a normalized checkpoint type.
type Rule struct {
	ID    string                `yaml:"id"`
	Type  models.CheckpointType `yaml:"type"`
	Match RuleMatch             `yaml:"match"`
}

// RuleMatch lists optional criteria. Every non-empty field must match; values within a field
// are alternatives. StatusNot and DescriptionExcludes veto a match and never match on their own.
type RuleMatch struct {
	Status              []string `yaml:"status"`
	StatusNot           []string `yaml:"status_not"`
	SubstatusPrefix     []string `yaml:"substatus_prefix"`
	DescriptionContains []string `yaml:"description_contains"`
	DescriptionExcludes []string `yaml:"description_excludes"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules       []Rule   `yaml:"rules"`
	LossPhrases []string `yaml:"loss_phrases"`
}

// DefaultLossPhrases are descriptions in which a carrier admits it cannot find a parcel.
var DefaultLossPhrases = []string{
	"unable to locate", "cannot be located", "could not be located",
	"reported lost", "declared lost", "lost in transit",
	"package is lost", "parcel is lost", "shipment is lost",
	"package is missing", "parcel is missing", "shipment is missing",
	"missing package", "missing parcel", "missing shipment",
}

// deliveredPhrases only match completed deliveries; a bare "delivered" also appears in ETAs.
var deliveredPhrases = []string{
	"was delivered", "has been delivered", "package delivered", "parcel delivered",
	"shipment delivered", "item delivered", "delivered to", "delivered at", "delivered in",
}

var deliveredVetoes = []string{
	"will be delivered", "to be delivered", "expected", "estimated", "scheduled",
	"not delivered", "undelivered", "could not",
}

// DefaultRules is the built-in normalization pack. Apart from a Delivered status, negative
// keywords are checked before the carrier's coarse status so that an "InTransit" scan reading
// "delayed" is not counted as progress.
var DefaultRules = []Rule{
	{ID: "delivered-status", Type: models.CheckpointDelivered, Match: RuleMatch{Status: []string{"Delivered"}}},
	{ID: "return-keywords", Type: models.CheckpointReturn, Match: RuleMatch{DescriptionContains: []string{"return to sender", "returned to sender", "returning to sender", "returned to shipper", "return to shipper"}}},
	{ID: "attempt-keywords", Type: models.CheckpointAttempt, Match: RuleMatch{DescriptionContains: []string{"delivery attempt", "attempted delivery", "could not be delivered", "no one available", "recipient not available"}}},
	{ID: "exception-keywords", Type: models.CheckpointException, Match: RuleMatch{DescriptionContains: []string{"exception", "unable to locate", "cannot be located", "could not be located", "reported lost", "declared lost", "lost in transit", "package is missing", "parcel is missing", "damaged", "delay", "on hold", "held at customs", "held by customs", "customs clearance", "incomplete address", "incorrect address"}}},
	{ID: "attempt-status", Type: models.CheckpointAttempt, Match: RuleMatch{Status: []string{"AttemptFail"}}},
	{ID: "exception-status", Type: models.CheckpointException, Match: RuleMatch{Status: []string{"Exception", "Expired"}}},
	{ID: "delivered-keywords", Type: models.CheckpointDelivered, Match: RuleMatch{
		StatusNot:           []string{"InTransit", "Pending", "InfoReceived", "OutForDelivery"},
		DescriptionContains: deliveredPhrases,
		DescriptionExcludes: deliveredVetoes,
	}},
	{ID: "ofd-status", Type: models.CheckpointOutForDelivery, Match: RuleMatch{Status: []string{"OutForDelivery"}}},
	{ID: "ofd-keywords", Type: models.CheckpointOutForDelivery, Match: RuleMatch{DescriptionContains: []string{"out for delivery", "with delivery courier", "on vehicle for delivery"}}},
	{ID: "local-keywords", Type: models.CheckpointLocal, Match: RuleMatch{DescriptionContains: []string{"post office", "local facility", "destination facility", "delivery station", "arrived at delivery"}}},
	{ID: "pickup-keywords", Type: models.CheckpointPickup, Match: RuleMatch{DescriptionContains: []string{"picked up", "pickup", "received by carrier", "accepted at", "acceptance"}}},
	{ID: "label-status", Type: models.CheckpointLabel, Match: RuleMatch{Status: []string{"InfoReceived", "Pending"}}},
	{ID: "label-keywords", Type: models.CheckpointLabel, Match: RuleMatch{DescriptionContains: []string{"label created", "shipping label", "information received", "pre-shipment"}}},
	{ID: "hub-status", Type: models.CheckpointHub, Match: RuleMatch{Status: []string{"InTransit"}}},
	{ID: "hub-keywords", Type: models.CheckpointHub, Match: RuleMatch{DescriptionContains: []string{"hub", "sort", "facility", "departed", "arrived", "in transit", "processed"}}},
}

// CheckpointExtractor normalizes raw carrier scans into typed checkpoints.
type CheckpointExtractor struct {
	rules       []Rule
	lossPhrases []string
	logger      *slog.Logger
}

// NewCheckpointExtractor builds an extractor from the default pack.
func NewCheckpointExtractor(logger *slog.Logger) *CheckpointExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointExtractor{rules: DefaultRules, lossPhrases: DefaultLossPhrases, logger: logger}
}

// LoadCheckpointExtractor reads a rule pack from path. An empty path or a missing file yields
// the default pack; a file without loss phrases keeps the defaults for them.
func LoadCheckpointExtractor(path string, logger *slog.Logger) (*CheckpointExtractor, error) {
	e := NewCheckpointExtractor(logger)
	if path == "" {
		return e, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("checkpoint rule pack not found, using defaults", slog.String("path", path))
			return e, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rule pack %s: %w", path, err)
	}
	for i, rule := range cfg.Rules {
		if !knownType(rule.Type) {
			return nil, fmt.Errorf("rule %d (%s): unknown checkpoint type %q", i, rule.ID, rule.Type)
		}
	}
	if len(cfg.Rules) > 0 {
		e.rules = cfg.Rules
	}
	if len(cfg.LossPhrases) > 0 {
		e.lossPhrases = cfg.LossPhrases
	}
	return e, nil
}

// Classify returns the type of the first matching rule, or UNKNOWN.
func (e *CheckpointExtractor) Classify(ev repo.TrackingEvent) models.CheckpointType {
	for _, rule := range e.rules {
		if rule.Match.matches(ev) {
			return rule.Type
		}
	}
	return models.CheckpointUnknown
}

// Normalize converts raw scans into checkpoints for a shipment, newest first. Scans without a
// timestamp cannot be keyed and are dropped.
func (e *CheckpointExtractor) Normalize(shipmentID string, events []repo.TrackingEvent) []models.Checkpoint {
	out := make([]models.Checkpoint, 0, len(events))
	for _, ev := range events {
		if ev.OccurredAt.IsZero() {
			e.logger.Debug("dropping scan without timestamp", slog.String("shipment_id", shipmentID), slog.String("description", ev.Description))
			continue
		}
		cpType := e.Classify(ev)
		out = append(out, models.Checkpoint{
			ShipmentID:  shipmentID,
			OccurredAt:  ev.OccurredAt.UTC(),
			Status:      ev.Status,
			Substatus:   ev.Substatus,
			Description: strings.TrimSpace(ev.Description),
			Location:    strings.TrimSpace(ev.Location),
			Type:        cpType,
			Sentiment:   SentimentFor(cpType),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out
}

// SentimentFor tags a checkpoint type as good, neutral or bad news.
func SentimentFor(t models.CheckpointType) models.Sentiment {
	switch {
	case t.Negative():
		return models.SentimentNegative
	case t == models.CheckpointDelivered, t == models.CheckpointPickup, t.Forward():
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}

func (m RuleMatch) matches(ev repo.TrackingEvent) bool {
	if len(m.Status) == 0 && len(m.SubstatusPrefix) == 0 && len(m.DescriptionContains) == 0 {
		return false
	}
	if len(m.Status) > 0 && !equalsAny(ev.Status, m.Status) {
		return false
	}
	if len(m.SubstatusPrefix) > 0 && !hasPrefixAny(ev.Substatus, m.SubstatusPrefix) {
		return false
	}
	if len(m.DescriptionContains) > 0 && !containsAny(ev.Description, m.DescriptionContains) {
		return false
	}
	if equalsAny(ev.Status, m.StatusNot) || containsAny(ev.Description, m.DescriptionExcludes) {
		return false
	}
	return true
}

func knownType(t models.CheckpointType) bool {
	switch t {
	case models.CheckpointLabel, models.CheckpointPickup, models.CheckpointHub, models.CheckpointLocal,
		models.CheckpointOutForDelivery, models.CheckpointDelivered, models.CheckpointException,
		models.CheckpointReturn, models.CheckpointAttempt, models.CheckpointUnknown:
		return true
	default:
		return false
	}
}

func equalsAny(value string, options []string) bool {
	value = strings.TrimSpace(value)
	for _, opt := range options {
		if strings.EqualFold(value, opt) {
			return true
		}
	}
	return false
}

func hasPrefixAny(value string, prefixes []string) bool {
	lower := strings.ToLower(value)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func containsAny(value string, keywords []string) bool {
	lower := strings.ToLower(value)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
