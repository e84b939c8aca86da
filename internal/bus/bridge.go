package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Bridge republishes in-process bus messages onto the Redis cache's pub/sub,
// so that the gateway process (which has no direct pipeline connection) can
// subscribe to chart updates and alerts produced by the pipeline process.
// It depends only on model.Cache, not a concrete redis client.
type Bridge struct {
	cache model.Cache
	log   *slog.Logger
}

func NewBridge(cache model.Cache, log *slog.Logger) *Bridge {
	return &Bridge{cache: cache, log: log}
}

// Forward subscribes to the given channels on b's bus and republishes every
// matching message, JSON-encoded, to the same channel name on Redis. Blocks
// until ctx is cancelled.
func (br *Bridge) Forward(ctx context.Context, b *Bus, channels ...string) {
	br.relay(ctx, b.SubscribeChannels(channels...))
}

// ForwardMatch subscribes to every channel satisfying match (e.g. the
// dynamic "alerts:<user_id>" channels, which can't be enumerated in
// advance) and republishes matching messages the same way as Forward.
func (br *Bridge) ForwardMatch(ctx context.Context, b *Bus, match func(channel string) bool) {
	br.relay(ctx, b.SubscribeMatch(match))
}

func (br *Bridge) relay(ctx context.Context, sub <-chan model.BusMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				br.log.Error("bridge: marshal failed", "channel", msg.Channel(), "error", err)
				continue
			}
			if err := br.cache.Publish(ctx, msg.Channel(), payload); err != nil {
				br.log.Error("bridge: publish failed", "channel", msg.Channel(), "error", err)
			}
		}
	}
}
