package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestNotifierSend(t *testing.T) {
	n := NewNotifier("https://api.resend.test", "re_key", "claims@parcelguard.test", time.Second)
	n.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/emails" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body struct {
			From    string   `json:"from"`
			To      []string `json:"to"`
			Subject string   `json:"subject"`
			Text    string   `json:"text"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.From != "claims@parcelguard.test" || len(body.To) != 1 || body.Text == "" {
			t.Fatalf("unexpected payload: %+v", body)
		}
		return jsonResponse(http.StatusOK, `{"id":"email-1"}`), nil
	}))

	id, err := n.Send(context.Background(), Email{To: []string{"ops@3pl.test"}, Subject: "Claim", Text: "Credit requested"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "email-1" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestNotifierRequiresRecipients(t *testing.T) {
	n := NewNotifier("https://api.resend.test", "", "claims@parcelguard.test", time.Second)
	if _, err := n.Send(context.Background(), Email{Subject: "x"}); err == nil {
		t.Fatal("expected error without recipients")
	}
}
