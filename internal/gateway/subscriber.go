package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Subscriber relays chart_updates and per-user alerts:<user_id> messages
// from Redis pub/sub (published by internal/bus.Bridge in the pipeline
// process) into the Hub — the gateway and pipeline are separate
// processes (spec's package layout), so this replaces an in-process
// bus.Subscribe with the cross-process Redis channel the pipeline
// actually publishes to.
type Subscriber struct {
	rdb *goredis.Client
	hub *Hub
	log *slog.Logger
}

func NewSubscriber(rdb *goredis.Client, hub *Hub, log *slog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, hub: hub, log: log}
}

// Run subscribes to "chart_updates" and the "alerts:*" pattern until ctx
// is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	go s.runChartUpdates(ctx)
	s.runAlerts(ctx)
}

func (s *Subscriber) runChartUpdates(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, "chart_updates")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg model.ChartUpdateMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				s.log.Error("gateway: decode chart_updates failed", "error", err)
				continue
			}
			s.hub.Dispatch(msg)
		}
	}
}

func (s *Subscriber) runAlerts(ctx context.Context) {
	sub := s.rdb.PSubscribe(ctx, "alerts:*")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg model.AlertMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				s.log.Error("gateway: decode alert failed", "channel", m.Channel, "error", err)
				continue
			}
			s.hub.DispatchAlert(msg)
		}
	}
}
