package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ringbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeCandleStore struct{}

func (fakeCandleStore) UpsertCandle(ctx context.Context, c model.Candle) error { return nil }
func (fakeCandleStore) RecentCandles(ctx context.Context, symbol string, tf int, limit int) ([]model.Candle, error) {
	return []model.Candle{{Symbol: symbol, TF: tf, Close: 100}}, nil
}
func (fakeCandleStore) Close() error { return nil }

type fakeIndicatorStore struct{}

func (fakeIndicatorStore) UpsertIndicatorRow(ctx context.Context, r model.IndicatorRow) error {
	return nil
}
func (fakeIndicatorStore) LatestIndicatorRow(ctx context.Context, symbol string, tf int) (*model.IndicatorRow, error) {
	return &model.IndicatorRow{Symbol: symbol, TF: tf}, nil
}
func (fakeIndicatorStore) Close() error { return nil }

func newTestHub() *Hub {
	return NewHub(fakeCandleStore{}, fakeIndicatorStore{}, testLogger())
}

// newTestClient builds a Client with just enough send-buffer state to
// test Hub's throttle/ring/flush logic without a real websocket conn.
func newTestClient(hub *Hub, symbol, user string) *Client {
	c := &Client{
		hub:    hub,
		log:    testLogger(),
		Symbol: symbol,
		User:   user,
		send:   make(chan []byte, 32),
	}
	c.ring = ringbuf.New[[]byte](ringCapacity)
	hub.register(c)
	return c
}

func TestOffer_ImmediateSendWhenThrottleElapsed(t *testing.T) {
	hub := newTestHub().WithThrottle(time.Hour) // never elapses after first send
	c := newTestClient(hub, "BTC-USD", "alice")

	msg := model.ChartUpdateMsg{Candle: model.Candle{Symbol: "BTC-USD"}}
	hub.Dispatch(msg)

	select {
	case payload := <-c.send:
		var frame updateFrame
		require.NoError(t, json.Unmarshal(payload, &frame))
		assert.Equal(t, "update", frame.Type)
	default:
		t.Fatal("expected an immediate send")
	}
}

func TestOffer_SubsequentSendsWithinThrottleAreQueued(t *testing.T) {
	hub := newTestHub().WithThrottle(time.Hour)
	c := newTestClient(hub, "BTC-USD", "alice")

	hub.Dispatch(model.ChartUpdateMsg{Candle: model.Candle{Symbol: "BTC-USD"}})
	<-c.send // drain the immediate send

	hub.Dispatch(model.ChartUpdateMsg{Candle: model.Candle{Symbol: "BTC-USD"}})
	hub.Dispatch(model.ChartUpdateMsg{Candle: model.Candle{Symbol: "BTC-USD"}})

	assert.Equal(t, 2, c.ring.Len())
	select {
	case <-c.send:
		t.Fatal("expected no immediate send while throttled")
	default:
	}
}

func TestFlush_SingleQueuedItemSendsBareFrame(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "BTC-USD", "alice")
	c.ring.Push([]byte(`{"type":"update"}`))

	c.flush()

	payload := <-c.send
	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "update", frame["type"])
}

func TestFlush_MultipleQueuedItemsWrapIntoBatch(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "BTC-USD", "alice")
	c.ring.Push([]byte(`{"type":"update","n":1}`))
	c.ring.Push([]byte(`{"type":"update","n":2}`))

	c.flush()

	payload := <-c.send
	var frame batchFrame
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "batch", frame.Type)
	assert.Equal(t, 2, frame.Count)
	assert.Len(t, frame.Messages, 2)
}

func TestDispatchAlert_OnlyReachesMatchingUser(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient(hub, "BTC-USD", "alice")
	bob := newTestClient(hub, "ETH-USD", "bob")

	hub.DispatchAlert(model.AlertMsg{Alert: model.Alert{Rule: model.AlertRule{User: "alice"}, Symbol: "BTC-USD"}})

	select {
	case <-alice.send:
	default:
		t.Fatal("alice should have received the alert")
	}
	select {
	case <-bob.send:
		t.Fatal("bob should not have received alice's alert")
	default:
	}
}

func TestRemove_DropsClientFromRegistry(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "BTC-USD", "alice")
	require.Equal(t, 1, hub.ClientCount())

	hub.Remove(c)
	assert.Equal(t, 0, hub.ClientCount())
}
