package indicator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeWindow(n int, start float64) []model.Candle {
	window := make([]model.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		price += 1
		window[i] = model.Candle{
			Symbol:   "BTC-USD",
			Venue:    "test",
			TF:       60,
			TSBucket: base.Add(time.Duration(i) * time.Minute),
			Open:     price - 1,
			High:     price + 0.5,
			Low:      price - 1.5,
			Close:    price,
			Volume:   100 + float64(i),
		}
	}
	return window
}

func TestComputeRow_NilWhenHistoryShort(t *testing.T) {
	window := makeWindow(5, 100)
	row := ComputeRow(Config{}, "BTC-USD", 60, window)

	assert.Nil(t, row.SMA20, "SMA20 needs 20 candles, only 5 given")
	assert.Nil(t, row.RSI, "RSI needs 15 candles, only 5 given")
	assert.NotNil(t, row.VWAP, "VWAP is cumulative and ready from the first candle")
}

func TestComputeRow_PopulatesFullSetWithEnoughHistory(t *testing.T) {
	window := makeWindow(WindowSize, 100)
	row := ComputeRow(Config{}, "BTC-USD", 60, window)

	require.NotNil(t, row.RSI)
	require.NotNil(t, row.MACDLine)
	require.NotNil(t, row.MACDSignal)
	require.NotNil(t, row.MACDHist)
	require.NotNil(t, row.BollUpper)
	require.NotNil(t, row.SMA20)
	require.NotNil(t, row.SMA50)
	require.NotNil(t, row.SMA100)
	require.NotNil(t, row.SMA200)
	require.NotNil(t, row.EMA12)
	require.NotNil(t, row.EMA26)
	require.NotNil(t, row.EMA50)
	require.NotNil(t, row.VWAP)
	require.NotNil(t, row.StochK)
	require.NotNil(t, row.StochD)
	require.NotNil(t, row.ATR)
	require.NotNil(t, row.ADX)
	require.NotNil(t, row.VolumeSMA)
	assert.Equal(t, window[len(window)-1].TSBucket, row.TSBucket)
}

func TestComputeRow_RisingMarketPushesRSIHigh(t *testing.T) {
	window := makeWindow(60, 100) // strictly increasing closes
	row := ComputeRow(Config{}, "BTC-USD", 60, window)
	require.NotNil(t, row.RSI)
	assert.Greater(t, *row.RSI, 90.0, "a monotonically rising window should push RSI near 100")
}

type fakeIndicatorStore struct {
	mu   sync.Mutex
	rows []model.IndicatorRow
}

func (s *fakeIndicatorStore) UpsertIndicatorRow(ctx context.Context, r model.IndicatorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, r)
	return nil
}
func (s *fakeIndicatorStore) LatestIndicatorRow(ctx context.Context, symbol string, tf int) (*model.IndicatorRow, error) {
	return nil, nil
}
func (s *fakeIndicatorStore) Close() error { return nil }

type fakeCache struct {
	mu   sync.Mutex
	sets map[string]map[string]string
}

func (c *fakeCache) SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]map[string]string{}
	}
	c.sets[key] = fields
	return nil
}
func (c *fakeCache) GetHash(ctx context.Context, key string) (map[string]string, error) { return nil, nil }
func (c *fakeCache) PushSortedSet(ctx context.Context, key string, score float64, member string, trimTo int) error {
	return nil
}
func (c *fakeCache) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func TestEngine_RunComputesRowAndHandsOff(t *testing.T) {
	window := makeWindow(WindowSize, 100)
	load := func(ctx context.Context, symbol, venue string, tf int) ([]model.Candle, error) {
		return window, nil
	}
	store := &fakeIndicatorStore{}
	cache := &fakeCache{}
	b := bus.New(16, testLogger())

	handoffCh := make(chan model.IndicatorRow, 1)
	handoff := func(ctx context.Context, candle model.Candle, row model.IndicatorRow, w []model.Candle) {
		handoffCh <- row
	}

	eng := New(Config{}, load, store, cache, b, handoff, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	chartCh := b.SubscribeChannels("chart_updates")

	last := window[len(window)-1]
	b.Publish(model.BarCompletedMsg{Candle: last})

	select {
	case row := <-handoffCh:
		assert.NotNil(t, row.SMA20)
	case <-time.After(2 * time.Second):
		t.Fatal("handoff was not invoked")
	}

	select {
	case msg := <-chartCh:
		cu, ok := msg.(model.ChartUpdateMsg)
		require.True(t, ok)
		assert.Equal(t, last.Symbol, cu.Candle.Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("chart_updates was not published")
	}

	store.mu.Lock()
	assert.Len(t, store.rows, 1)
	store.mu.Unlock()
}
