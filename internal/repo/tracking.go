package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parcelguard/claimwatch/internal/cache"
)

// TrackingEvent is one raw carrier scan as reported by the tracking provider.
type TrackingEvent struct {
	OccurredAt  time.Time
	Status      string
	Substatus   string
	Description string
	Location    string
}

// LookupKind records whether a lookup created a billable tracking or polled an existing one.
type LookupKind string

const (
	LookupCreate LookupKind = "create"
	LookupPoll   LookupKind = "poll"
)

// LookupRequest identifies the shipment to look up. TrackingID is the provider's id from a
// previous lookup and may be empty.
type LookupRequest struct {
	TrackingNumber string
	Carrier        string
	TrackingID     string
}

// TrackingResult is the provider's view of a shipment.
type TrackingResult struct {
	TrackingID           string
	Kind                 LookupKind
	Status               string
	LatestCheckpointTime *time.Time
	LatestEvent          string
	Events               []TrackingEvent
}

// TrackingClient talks to the carrier-tracking provider. Creating a tracking is billable,
// polling one is free, so provider ids are remembered in the cache between lookups.
type TrackingClient struct {
	endpoint jsonEndpoint
	cache    cache.Provider
	idTTL    time.Duration
}

// NewTrackingClient constructs a tracking provider client.
func NewTrackingClient(baseURL, apiKey string, timeout time.Duration, cacheProvider cache.Provider, idTTL time.Duration) *TrackingClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if idTTL < 0 {
		idTTL = 0
	}
	return &TrackingClient{
		endpoint: jsonEndpoint{
			service:    "tracking provider",
			baseURL:    strings.TrimRight(baseURL, "/"),
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
		cache: cacheProvider,
		idTTL: idTTL,
	}
}

type trackingEnvelope struct {
	Tracking struct {
		ID                   string     `json:"id"`
		Status               string     `json:"status"`
		LatestCheckpointTime *time.Time `json:"latest_checkpoint_time"`
		LatestEvent          string     `json:"latest_event"`
		Checkpoints          []struct {
			OccurredAt  time.Time `json:"occurred_at"`
			Status      string    `json:"status"`
			Substatus   string    `json:"substatus"`
			Description string    `json:"description"`
			Location    string    `json:"location"`
		} `json:"checkpoints"`
	} `json:"tracking"`
}

// Lookup fetches the tracking history for a shipment. Without a known tracking id it first
// consults the cache and only falls back to creating a new tracking when nothing is remembered.
// A poll answered with 404 evicts the id and creates a fresh tracking.
func (c *TrackingClient) Lookup(ctx context.Context, req LookupRequest) (TrackingResult, error) {
	if c == nil {
		return TrackingResult{}, fmt.Errorf("tracking client not initialised")
	}
	if strings.TrimSpace(req.TrackingNumber) == "" {
		return TrackingResult{}, fmt.Errorf("tracking number required")
	}

	key := cacheTrackingIDKey(req.Carrier, req.TrackingNumber)
	trackingID := req.TrackingID
	if trackingID == "" {
		if data, err := c.cache.Get(ctx, key); err == nil && len(data) > 0 {
			trackingID = string(data)
		}
	}

	var (
		envelope trackingEnvelope
		kind     LookupKind
	)
	if trackingID != "" {
		kind = LookupPoll
		err := c.endpoint.getJSON(ctx, "/v1/trackings/"+url.PathEscape(trackingID), &envelope)
		var statusErr *StatusError
		switch {
		case err == nil:
		case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
			// The provider no longer knows the id; forget it and register the parcel again.
			_ = c.cache.Del(ctx, key)
			trackingID = ""
		default:
			return TrackingResult{}, fmt.Errorf("tracking poll failed: %w", err)
		}
	}
	if trackingID == "" {
		kind = LookupCreate
		payload := map[string]string{
			"tracking_number": req.TrackingNumber,
			"carrier":         req.Carrier,
		}
		if err := c.endpoint.postJSON(ctx, "/v1/trackings", payload, &envelope); err != nil {
			return TrackingResult{}, fmt.Errorf("tracking create failed: %w", err)
		}
	}

	result := TrackingResult{
		TrackingID:           firstNonEmpty(envelope.Tracking.ID, trackingID),
		Kind:                 kind,
		Status:               envelope.Tracking.Status,
		LatestCheckpointTime: envelope.Tracking.LatestCheckpointTime,
		LatestEvent:          envelope.Tracking.LatestEvent,
		Events:               make([]TrackingEvent, 0, len(envelope.Tracking.Checkpoints)),
	}
	for _, cp := range envelope.Tracking.Checkpoints {
		result.Events = append(result.Events, TrackingEvent{
			OccurredAt:  cp.OccurredAt,
			Status:      cp.Status,
			Substatus:   cp.Substatus,
			Description: cp.Description,
			Location:    cp.Location,
		})
	}

	if result.TrackingID != "" && c.idTTL > 0 {
		_ = c.cache.Set(ctx, key, []byte(result.TrackingID), c.idTTL)
	}
	return result, nil
}

func cacheTrackingIDKey(carrier, trackingNumber string) string {
	return fmt.Sprintf("tracking:id:%s:%s", strings.ToUpper(strings.TrimSpace(carrier)), strings.TrimSpace(trackingNumber))
}
