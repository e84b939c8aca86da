package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// WebhookChannel POSTs the alert to the URL named in the rule's
// metadata["webhook_url"], adapted from internal/notification's
// WebhookNotifier (generic JSON POST with its own http.Client timeout).
type WebhookChannel struct {
	client *http.Client
}

func NewWebhookChannel() *WebhookChannel {
	return &WebhookChannel{client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookChannel) Send(ctx context.Context, a model.Alert) error {
	url := a.Rule.Metadata["webhook_url"]
	if url == "" {
		return fmt.Errorf("notify/webhook: rule %s has no webhook_url metadata", a.Rule.ID)
	}

	body, err := json.Marshal(map[string]any{
		"symbol":    a.Symbol,
		"condition": a.Rule.Condition,
		"price":     a.Price,
		"threshold": a.Rule.Threshold,
		"message":   humanMessage(a),
		"fired_at":  a.FiredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("notify/webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify/webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify/webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify/webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
