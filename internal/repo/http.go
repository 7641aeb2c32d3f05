package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Service string
	Code    int
	Status  string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %s", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned %s: %s", e.Service, e.Status, e.Body)
}

// jsonEndpoint bundles what every provider client needs to issue JSON requests.
type jsonEndpoint struct {
	service    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func (e jsonEndpoint) resolve(p string) string {
	if e.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return e.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (e jsonEndpoint) postJSON(ctx context.Context, p string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return e.do(ctx, http.MethodPost, p, bytes.NewReader(body), out)
}

func (e jsonEndpoint) getJSON(ctx context.Context, p string, out any) error {
	return e.do(ctx, http.MethodGet, p, nil, out)
}

func (e jsonEndpoint) do(ctx context.Context, method, p string, body io.Reader, out any) error {
	endpoint := e.resolve(p)
	if endpoint == "" {
		return fmt.Errorf("%s base URL not configured", e.service)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Service: e.service,
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Body:    strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
