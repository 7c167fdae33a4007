package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/leadflow/internal/pkg/httpretry"
	"github.com/ignite/leadflow/internal/pkg/logger"
)

const defaultSparkPostURL = "https://api.sparkpost.com/api/v1/transmissions"

// SparkPostTransport delivers email through the SparkPost transmissions API.
// Requests go through the shared retrying client, so transient provider
// errors are absorbed before the engine ever sees a DeliveryError.
type SparkPostTransport struct {
	apiKey string
	url    string
	client httpretry.HTTPDoer
}

// NewSparkPostTransport creates a SparkPost transport. An empty baseURL uses
// the public API endpoint.
func NewSparkPostTransport(apiKey, baseURL string) *SparkPostTransport {
	if baseURL == "" {
		baseURL = defaultSparkPostURL
	}
	return &SparkPostTransport{
		apiKey: apiKey,
		url:    baseURL,
		client: httpretry.NewRetryClient(nil, 3),
	}
}

func (t *SparkPostTransport) Name() string { return "sparkpost" }

func (t *SparkPostTransport) Send(ctx context.Context, email *Email) (*Result, error) {
	payload := map[string]any{
		"recipients": []map[string]any{
			{"address": map[string]string{"email": email.To, "name": email.ToName}},
		},
		"content": map[string]any{
			"from":    map[string]string{"email": email.From, "name": email.FromName},
			"subject": email.Subject,
			"html":    email.HTML,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sparkpost payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparkpost request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sparkpost error: status %d", resp.StatusCode)
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// the send succeeded; only the transmission id is lost
		logger.Warn("sparkpost response decode failed", "status", resp.StatusCode, "error", err)
	}

	return &Result{Provider: "sparkpost", MessageID: result.Results.ID, SentAt: time.Now().UTC()}, nil
}
