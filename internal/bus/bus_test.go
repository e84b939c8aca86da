package bus

import (
	"context"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

func TestBus_BroadcastsToAll(t *testing.T) {
	b := New(10, nil)
	out1 := b.Subscribe()
	out2 := b.Subscribe()

	input := make(chan model.BusMessage, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, input)

	msg := model.BarCompletedMsg{Candle: model.Candle{Symbol: "BTC-USD", Venue: "binance", TF: 60}}
	input <- msg
	time.Sleep(50 * time.Millisecond)

	select {
	case m := <-out1:
		if m.(model.BarCompletedMsg).Candle.Symbol != "BTC-USD" {
			t.Errorf("out1: unexpected payload %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for message")
	}

	select {
	case m := <-out2:
		if m.(model.BarCompletedMsg).Candle.Symbol != "BTC-USD" {
			t.Errorf("out2: unexpected payload %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for message")
	}
}

func TestBus_ChannelFiltering(t *testing.T) {
	b := New(10, nil)
	bars := b.SubscribeChannels("bars:completed")
	alerts := b.SubscribeChannels("alerts:u1")

	b.Publish(model.BarCompletedMsg{Candle: model.Candle{Symbol: "ETH-USD"}})
	b.Publish(model.AlertMsg{Alert: model.Alert{Rule: model.AlertRule{User: "u1"}}})

	select {
	case <-bars:
	case <-time.After(time.Second):
		t.Fatal("bars subscriber did not receive bar message")
	}
	select {
	case m := <-bars:
		t.Fatalf("bars subscriber should not receive alert message, got %+v", m)
	default:
	}

	select {
	case <-alerts:
	case <-time.After(time.Second):
		t.Fatal("alerts subscriber did not receive alert message")
	}
}

func TestBus_DropsOnFullSubscriber(t *testing.T) {
	dropped := 0
	b := New(1, nil)
	b.OnDrop = func(idx int, msg model.BusMessage) { dropped++ }
	sub := b.SubscribeChannels("bars:completed")

	b.Publish(model.BarCompletedMsg{Candle: model.Candle{Symbol: "A"}})
	b.Publish(model.BarCompletedMsg{Candle: model.Candle{Symbol: "B"}}) // subscriber buffer full, should drop

	if dropped != 1 {
		t.Fatalf("expected 1 drop, got %d", dropped)
	}
	<-sub // drain so the goroutine isn't leaked by the test
}
