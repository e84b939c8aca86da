// Package bus provides in-process pub/sub fanout over model.BusMessage,
// the tagged-variant envelope that replaces "dict of any" on internal
// message paths. Grounded on the teacher's internal/marketdata/bus.FanOut,
// generalized from a single model.Candle payload to any BusMessage and
// from unconditional broadcast to per-subscriber channel filtering (a
// gateway client wants ChartUpdateMsg and AlertMsg, not raw TickMsg).
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Bus broadcasts messages from a single input channel to N subscribers.
// If a subscriber's channel is full, the message is dropped for that
// consumer to prevent a slow consumer from blocking the pipeline.
type Bus struct {
	log *slog.Logger

	mu      sync.RWMutex
	subs    []*subscription
	bufSize int

	// OnDrop is called when a message is dropped for a slow subscriber.
	OnDrop func(subscriberIdx int, msg model.BusMessage)
}

type subscription struct {
	ch       chan model.BusMessage
	channels map[string]bool // nil means "all channels"
	match    func(channel string) bool
}

func (s *subscription) wants(channel string) bool {
	if s.match != nil {
		return s.match(channel)
	}
	if s.channels == nil {
		return true
	}
	return s.channels[channel]
}

// New creates a Bus with the given per-subscriber buffer size.
func New(bufSize int, log *slog.Logger) *Bus {
	return &Bus{bufSize: bufSize, log: log}
}

// Subscribe returns a channel carrying every message published to the bus.
func (b *Bus) Subscribe() <-chan model.BusMessage {
	return b.subscribe(nil)
}

// SubscribeChannels returns a channel carrying only messages whose
// Channel() is in the given set (e.g. "bars:completed", "system:health").
func (b *Bus) SubscribeChannels(channels ...string) <-chan model.BusMessage {
	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}
	return b.subscribe(set)
}

func (b *Bus) subscribe(channels map[string]bool) <-chan model.BusMessage {
	sub := &subscription{ch: make(chan model.BusMessage, b.bufSize), channels: channels}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch
}

// SubscribeMatch returns a channel carrying only messages whose Channel()
// satisfies match — used by Bridge.ForwardMatch to relay a channel-name
// prefix (e.g. every "alerts:<user>") without enumerating user IDs.
func (b *Bus) SubscribeMatch(match func(channel string) bool) <-chan model.BusMessage {
	sub := &subscription{ch: make(chan model.BusMessage, b.bufSize), match: match}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch
}

// Publish fans a single message out to every matching subscriber,
// non-blocking: a full subscriber channel drops the message rather than
// stalling the publisher.
func (b *Bus) Publish(msg model.BusMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i, sub := range b.subs {
		if !sub.wants(msg.Channel()) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			if b.OnDrop != nil {
				b.OnDrop(i, msg)
			} else if b.log != nil {
				b.log.Warn("bus subscriber full, dropping message", "subscriber", i, "channel", msg.Channel())
			}
		}
	}
}

// Run reads from input and publishes each message until ctx is cancelled
// or input is closed, then closes every subscriber channel.
func (b *Bus) Run(ctx context.Context, input <-chan model.BusMessage) {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-input:
			if !ok {
				return
			}
			b.Publish(msg)
		}
	}
}

func (b *Bus) closeAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		close(sub.ch)
	}
}

// SubscriberStat reports (length, capacity) for one subscriber's channel,
// used to compute saturation for health reporting.
type SubscriberStat struct {
	Len int
	Cap int
}

func (b *Bus) SubscriberStats() []SubscriberStat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make([]SubscriberStat, len(b.subs))
	for i, sub := range b.subs {
		stats[i] = SubscriberStat{Len: len(sub.ch), Cap: cap(sub.ch)}
	}
	return stats
}
