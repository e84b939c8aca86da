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

// SlackChannel POSTs a block-kit formatted message to the rule's
// metadata["slack_webhook_url"], following
// alert_manager.py's _send_slack_notification (block-kit section + 10s
// timeout) and structurally mirroring internal/notification's
// TelegramNotifier (per-channel http.Client, bot-specific payload shape).
type SlackChannel struct {
	client *http.Client
}

func NewSlackChannel() *SlackChannel {
	return &SlackChannel{client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackChannel) Send(ctx context.Context, a model.Alert) error {
	url := a.Rule.Metadata["slack_webhook_url"]
	if url == "" {
		return fmt.Errorf("notify/slack: rule %s has no slack_webhook_url metadata", a.Rule.ID)
	}

	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Alert: %s*\n%s", a.Symbol, humanMessage(a)),
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify/slack: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify/slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify/slack: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify/slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}
