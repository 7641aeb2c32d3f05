package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateThenPollTracking(t *testing.T) {
	ts := httptest.NewServer(newServer().routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/trackings", "application/json", strings.NewReader(`{"tracking_number":"1Z999","carrier":"ups"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Tracking tracking `json:"tracking"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Tracking.ID == "" || len(created.Tracking.Checkpoints) == 0 {
		t.Fatalf("unexpected tracking %+v", created.Tracking)
	}

	poll, err := http.Get(ts.URL + "/v1/trackings/" + created.Tracking.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	defer poll.Body.Close()
	if poll.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", poll.StatusCode)
	}
}

func TestSendEmailRequiresRecipients(t *testing.T) {
	ts := httptest.NewServer(newServer().routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/emails", "application/json", strings.NewReader(`{"from":"a@example.com","subject":"hi"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
