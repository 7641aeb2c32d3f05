package repo

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

const trackingBody = `{"tracking":{"id":"trk-42","status":"InTransit","latest_checkpoint_time":"2024-03-02T10:00:00Z","latest_event":"Arrived at hub","checkpoints":[
 {"occurred_at":"2024-03-02T10:00:00Z","status":"InTransit","substatus":"InTransit_003","description":"Arrived at hub","location":"Memphis, TN"},
 {"occurred_at":"2024-03-01T08:00:00Z","status":"InfoReceived","description":"Label created"}]}}`

func TestTrackingLookupCreatesThenPolls(t *testing.T) {
	cacheStub := newStubCache()
	client := NewTrackingClient("https://tracking.test", "key", time.Second, cacheStub, time.Hour)

	var methods []string
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		methods = append(methods, req.Method+" "+req.URL.Path)
		if got := req.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		return jsonResponse(http.StatusOK, trackingBody), nil
	}))

	ctx := context.Background()
	first, err := client.Lookup(ctx, LookupRequest{TrackingNumber: "1Z999", Carrier: "ups"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first.Kind != LookupCreate || first.TrackingID != "trk-42" {
		t.Fatalf("unexpected first lookup: %+v", first)
	}
	if len(first.Events) != 2 || first.Events[0].Location != "Memphis, TN" {
		t.Fatalf("unexpected events: %+v", first.Events)
	}

	second, err := client.Lookup(ctx, LookupRequest{TrackingNumber: "1Z999", Carrier: "UPS"})
	if err != nil {
		t.Fatalf("Lookup (cached id): %v", err)
	}
	if second.Kind != LookupPoll {
		t.Fatalf("expected poll using cached id, got %s", second.Kind)
	}

	want := []string{"POST /v1/trackings", "GET /v1/trackings/trk-42"}
	if len(methods) != len(want) || methods[0] != want[0] || methods[1] != want[1] {
		t.Fatalf("unexpected requests: %v", methods)
	}
}

func TestTrackingLookupUsesKnownID(t *testing.T) {
	client := NewTrackingClient("https://tracking.test", "", time.Second, nil, 0)
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/v1/trackings/known" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"tracking":{"status":"InTransit"}}`), nil
	}))

	res, err := client.Lookup(context.Background(), LookupRequest{TrackingNumber: "1Z", TrackingID: "known"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.TrackingID != "known" {
		t.Fatalf("expected known id to be kept, got %q", res.TrackingID)
	}
}

func TestTrackingLookupStatusError(t *testing.T) {
	client := NewTrackingClient("https://tracking.test", "", time.Second, nil, 0)
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":"slow down"}`), nil
	}))

	_, err := client.Lookup(context.Background(), LookupRequest{TrackingNumber: "1Z"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected code %d", statusErr.Code)
	}
}

func TestTrackingLookupRequiresNumber(t *testing.T) {
	client := NewTrackingClient("https://tracking.test", "", time.Second, nil, 0)
	if _, err := client.Lookup(context.Background(), LookupRequest{}); err == nil {
		t.Fatal("expected error for empty tracking number")
	}
}

func TestTrackingLookupRecreatesUnknownID(t *testing.T) {
	cacheStub := newStubCache()
	key := cacheTrackingIDKey("UPS", "1Z999")
	cacheStub.store[key] = []byte("gone")
	client := NewTrackingClient("https://tracking.test", "", time.Second, cacheStub, 0)

	var requests []string
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requests = append(requests, req.Method+" "+req.URL.Path)
		if req.Method == http.MethodGet {
			return jsonResponse(http.StatusNotFound, `{"error":"tracking not found"}`), nil
		}
		return jsonResponse(http.StatusOK, trackingBody), nil
	}))

	res, err := client.Lookup(context.Background(), LookupRequest{TrackingNumber: "1Z999", Carrier: "UPS"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Kind != LookupCreate || res.TrackingID != "trk-42" {
		t.Fatalf("expected a fresh tracking, got %+v", res)
	}
	if len(requests) != 2 || requests[0] != "GET /v1/trackings/gone" || requests[1] != "POST /v1/trackings" {
		t.Fatalf("unexpected requests: %v", requests)
	}
	if _, ok := cacheStub.store[key]; ok {
		t.Fatal("stale tracking id should be evicted from the cache")
	}
}
