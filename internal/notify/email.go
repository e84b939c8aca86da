package notify

import (
	"context"
	"log/slog"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// EmailChannel is a log-only placeholder, matching
// alert_manager.py's _send_email_notification — that method's actual
// aiosmtplib delivery is commented out there too, pending an SMTP
// provider decision.
type EmailChannel struct {
	log *slog.Logger
}

func NewEmailChannel(log *slog.Logger) *EmailChannel { return &EmailChannel{log: log} }

func (e *EmailChannel) Send(ctx context.Context, a model.Alert) error {
	e.log.Info("email alert (delivery not configured)",
		"user", a.Rule.User, "symbol", a.Symbol, "message", humanMessage(a))
	return nil
}
