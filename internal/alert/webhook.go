package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// WebhookDispatcher POSTs a JSON alert payload to a configured URL.
// Any non-2xx response counts as a delivery failure.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher creates a WebhookDispatcher with its own HTTP client.
func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Subject         string             `json:"subject"`
	Body            string             `json:"body"`
	Record          *models.ErrorRecord `json:"record"`
	DispatchedAtUTC time.Time          `json:"dispatched_at_utc"`
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, rec *models.ErrorRecord) error {
	payload, err := json.Marshal(webhookPayload{
		Subject:         Subject(rec),
		Body:            Body(rec),
		Record:          rec,
		DispatchedAtUTC: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
