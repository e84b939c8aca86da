package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// WSChannel publishes fired alerts to a per-user pub/sub channel that the
// WS Fan-Out (spec 4.8) relays to that user's connected clients — grounded
// on alert_manager.py's _send_websocket_notification, which publishes to
// Redis channel "alerts:{user_id}".
type WSChannel struct {
	cache model.Cache
}

func NewWSChannel(cache model.Cache) *WSChannel { return &WSChannel{cache: cache} }

type wsAlertEnvelope struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	RuleID  string  `json:"rule_id"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
	FiredAt string  `json:"fired_at"`
}

func (w *WSChannel) Send(ctx context.Context, a model.Alert) error {
	payload, err := json.Marshal(wsAlertEnvelope{
		Type:    "alert",
		Symbol:  a.Symbol,
		RuleID:  a.Rule.ID,
		Price:   a.Price,
		Message: humanMessage(a),
		FiredAt: a.FiredAt.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("notify/ws: marshal: %w", err)
	}
	return w.cache.Publish(ctx, "alerts:"+a.Rule.User, payload)
}
