package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/parcelguard/claimwatch/internal/cache"
	"github.com/parcelguard/claimwatch/internal/models"
)

// AssessmentRequest is the shipment context sent to the AI assessment provider.
type AssessmentRequest struct {
	ShipmentID          string            `json:"shipment_id"`
	TrackingNumber      string            `json:"tracking_number"`
	Carrier             string            `json:"carrier"`
	International       bool              `json:"international"`
	OriginCountry       string            `json:"origin_country,omitempty"`
	DestinationCountry  string            `json:"destination_country,omitempty"`
	DaysInTransit       int               `json:"days_in_transit"`
	DaysSinceLastUpdate int               `json:"days_since_last_update"`
	TypicalTransitDays  float64           `json:"typical_transit_days,omitempty"`
	Checkpoints         []AssessmentScan  `json:"checkpoints"`
	Heuristic           models.Assessment `json:"heuristic"`
	Fingerprint         string            `json:"-"`
}

// AssessmentScan is a checkpoint as presented to the provider.
type AssessmentScan struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
}

type assessmentResponse struct {
	StatusBadge       string   `json:"status_badge"`
	RiskLevel         string   `json:"risk_level"`
	CustomerSentiment string   `json:"customer_sentiment"`
	Urgency           *float64 `json:"urgency"`
	KeyInsight        string   `json:"key_insight"`
	NextMilestone     string   `json:"next_milestone"`
	Confidence        *float64 `json:"confidence"`
}

// AssessmentClient calls the AI assessment provider and validates its answer.
type AssessmentClient struct {
	endpoint jsonEndpoint
	cache    cache.Provider
	ttl      time.Duration
	now      func() time.Time
}

// NewAssessmentClient constructs an AI assessment client.
func NewAssessmentClient(baseURL, apiKey string, timeout time.Duration, cacheProvider cache.Provider, ttl time.Duration) *AssessmentClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if ttl < 0 {
		ttl = 0
	}
	return &AssessmentClient{
		endpoint: jsonEndpoint{
			service:    "assessment provider",
			baseURL:    strings.TrimRight(baseURL, "/"),
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
		cache: cacheProvider,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Assess requests an assessment. Results are cached per shipment and history fingerprint, so
// a re-check with no new scans does not pay for another provider call.
func (c *AssessmentClient) Assess(ctx context.Context, req AssessmentRequest) (models.Assessment, error) {
	if c == nil {
		return models.Assessment{}, fmt.Errorf("assessment client not initialised")
	}

	cacheKey := ""
	if req.Fingerprint != "" {
		cacheKey = cacheAssessmentKey(req.ShipmentID, req.Fingerprint)
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached models.Assessment
			if err := json.Unmarshal(data, &cached); err == nil && cached.Validate() == nil {
				return cached, nil
			}
		}
	}

	var resp assessmentResponse
	if err := c.endpoint.postJSON(ctx, "/v1/assessments", req, &resp); err != nil {
		return models.Assessment{}, fmt.Errorf("assessment request failed: %w", err)
	}

	assessment, err := resp.toAssessment(c.now())
	if err != nil {
		return models.Assessment{}, fmt.Errorf("invalid assessment for %s: %w", req.ShipmentID, err)
	}

	if c.ttl > 0 && cacheKey != "" {
		if payload, err := json.Marshal(assessment); err == nil {
			_ = c.cache.Set(ctx, cacheKey, payload, c.ttl)
		}
	}
	return assessment, nil
}

func (r assessmentResponse) toAssessment(now time.Time) (models.Assessment, error) {
	badge, err := models.ParseStatusBadge(r.StatusBadge)
	if err != nil {
		return models.Assessment{}, err
	}
	level, err := models.ParseRiskLevel(r.RiskLevel)
	if err != nil {
		return models.Assessment{}, err
	}
	if r.Urgency == nil || math.IsNaN(*r.Urgency) {
		return models.Assessment{}, fmt.Errorf("urgency missing")
	}
	confidence := 0.5
	if r.Confidence != nil && !math.IsNaN(*r.Confidence) {
		confidence = *r.Confidence
	}
	a := models.Assessment{
		StatusBadge:       badge,
		RiskLevel:         level,
		Urgency:           *r.Urgency,
		Confidence:        confidence,
		Narrative:         strings.TrimSpace(r.KeyInsight),
		CustomerSentiment: strings.TrimSpace(r.CustomerSentiment),
		NextMilestone:     strings.TrimSpace(r.NextMilestone),
		Source:            models.SourceAI,
		AssessedAt:        now.UTC(),
	}
	if err := a.Validate(); err != nil {
		return models.Assessment{}, err
	}
	return a, nil
}

func cacheAssessmentKey(shipmentID, fingerprint string) string {
	return fmt.Sprintf("assessment:%s:%s", shipmentID, fingerprint)
}
