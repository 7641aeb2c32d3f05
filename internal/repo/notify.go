package repo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Email is an outbound notification.
type Email struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Notifier sends email through a Resend-compatible API.
type Notifier struct {
	endpoint jsonEndpoint
	from     string
}

// NewNotifier constructs an email notifier.
func NewNotifier(baseURL, apiKey, from string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		endpoint: jsonEndpoint{
			service:    "email provider",
			baseURL:    strings.TrimRight(baseURL, "/"),
			apiKey:     apiKey,
			httpClient: &http.Client{Timeout: timeout},
		},
		from: from,
	}
}

// Send delivers an email and returns the provider's message id.
func (n *Notifier) Send(ctx context.Context, email Email) (string, error) {
	if n == nil {
		return "", fmt.Errorf("notifier not initialised")
	}
	if len(email.To) == 0 {
		return "", fmt.Errorf("no recipients")
	}
	if n.from == "" {
		return "", fmt.Errorf("sender address not configured")
	}

	payload := map[string]any{
		"from":    n.from,
		"to":      email.To,
		"subject": email.Subject,
	}
	if email.Text != "" {
		payload["text"] = email.Text
	}
	if email.HTML != "" {
		payload["html"] = email.HTML
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := n.endpoint.postJSON(ctx, "/emails", payload, &resp); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return resp.ID, nil
}
