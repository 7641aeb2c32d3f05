package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/parcelguard/claimwatch/internal/cache"
	"github.com/parcelguard/claimwatch/internal/models"
)

func TestAssessCachesByFingerprint(t *testing.T) {
	var hits int
	cacheStub := newStubCache()
	client := NewAssessmentClient("https://ai.test", "", time.Second, cacheStub, time.Hour)
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.URL.Path != "/v1/assessments" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["shipment_id"] != "shp-1" {
			t.Fatalf("unexpected request body: %v", body)
		}
		return jsonResponse(http.StatusOK, `{"status_badge":"stalled","risk_level":"HIGH","urgency":6.5,"confidence":0.8,"key_insight":"No scans for 9 days","next_milestone":"Hub scan"}`), nil
	}))

	req := AssessmentRequest{ShipmentID: "shp-1", Fingerprint: "fp-1"}
	got, err := client.Assess(context.Background(), req)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.StatusBadge != models.BadgeStalled || got.RiskLevel != models.RiskHigh || got.Source != models.SourceAI {
		t.Fatalf("unexpected assessment: %+v", got)
	}
	if got.Narrative != "No scans for 9 days" {
		t.Fatalf("narrative not mapped: %q", got.Narrative)
	}

	if _, err := client.Assess(context.Background(), req); err != nil {
		t.Fatalf("Assess (cached): %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream call, got %d", hits)
	}
}

func TestAssessRejectsInvalidPayload(t *testing.T) {
	cases := map[string]string{
		"badge":   `{"status_badge":"VANISHED","risk_level":"low","urgency":1}`,
		"level":   `{"status_badge":"MOVING","risk_level":"extreme","urgency":1}`,
		"urgency": `{"status_badge":"MOVING","risk_level":"low","urgency":42}`,
		"missing": `{"status_badge":"MOVING","risk_level":"low"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := NewAssessmentClient("https://ai.test", "", time.Second, cache.NoopProvider{}, 0)
			client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, body), nil
			}))
			if _, err := client.Assess(context.Background(), AssessmentRequest{ShipmentID: "shp-1"}); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAssessWithoutEndpoint(t *testing.T) {
	client := NewAssessmentClient("", "", time.Second, nil, 0)
	if _, err := client.Assess(context.Background(), AssessmentRequest{ShipmentID: "shp-1"}); err == nil {
		t.Fatal("expected error when base URL is empty")
	}
}
