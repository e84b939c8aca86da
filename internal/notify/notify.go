// Package notify implements the per-channel alert dispatch backends (spec
// 4.7's ws/email/webhook/slack channels), adapted from
// internal/notification's Notifier interface and its Telegram/webhook
// HTTP-delivery pattern — generalized from trading alerts to market-data
// alert.Engine firings and extended with the ws and slack channels
// original_source/api/alert_manager.py implements.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Router dispatches a fired alert to the one channel it names, satisfying
// alert.Dispatcher. Each channel backend owns its own delivery mechanics;
// Router only selects among them.
type Router struct {
	ws      *WSChannel
	email   *EmailChannel
	webhook *WebhookChannel
	slack   *SlackChannel
	log     *slog.Logger
}

func NewRouter(ws *WSChannel, email *EmailChannel, webhook *WebhookChannel, slack *SlackChannel, log *slog.Logger) *Router {
	return &Router{ws: ws, email: email, webhook: webhook, slack: slack, log: log}
}

func (r *Router) Send(ctx context.Context, channel model.AlertChannel, a model.Alert) error {
	switch channel {
	case model.ChannelWS:
		return r.ws.Send(ctx, a)
	case model.ChannelEmail:
		return r.email.Send(ctx, a)
	case model.ChannelWebhook:
		return r.webhook.Send(ctx, a)
	case model.ChannelSlack:
		return r.slack.Send(ctx, a)
	default:
		return fmt.Errorf("notify: unknown channel %q", channel)
	}
}

// humanMessage renders the alert the same way across channels, mirroring
// alert_manager.py's _get_human_readable_message.
func humanMessage(a model.Alert) string {
	return fmt.Sprintf("%s: %s triggered at %.4f (%s)", a.Symbol, a.Rule.Condition, a.Price, a.Reason)
}
