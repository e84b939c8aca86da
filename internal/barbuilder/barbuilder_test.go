package barbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandleStore struct {
	upserts []model.Candle
}

func (f *fakeCandleStore) UpsertCandle(ctx context.Context, c model.Candle) error {
	f.upserts = append(f.upserts, c)
	return nil
}
func (f *fakeCandleStore) RecentCandles(ctx context.Context, symbol string, tf int, limit int) ([]model.Candle, error) {
	return nil, nil
}
func (f *fakeCandleStore) Close() error { return nil }

type fakeQualityStore struct {
	samples []model.QualitySample
}

func (f *fakeQualityStore) InsertQualitySample(ctx context.Context, s model.QualitySample) error {
	f.samples = append(f.samples, s)
	return nil
}
func (f *fakeQualityStore) RecentFailures(ctx context.Context, symbol string, since int64, limit int) ([]model.QualitySample, error) {
	return nil, nil
}
func (f *fakeQualityStore) Summary(ctx context.Context, symbol string, since int64) (model.QualitySummary, error) {
	return model.QualitySummary{}, nil
}
func (f *fakeQualityStore) Close() error { return nil }

func tickAt(sym string, price float64, t time.Time) model.Tick {
	return model.Tick{Venue: "binance", Symbol: sym, Price: price, Quantity: 1, TS: t}
}

func TestBuilder_ClosesCandleOnBucketBoundary(t *testing.T) {
	store := &fakeCandleStore{}
	b := New(Config{BaseTF: 60}, store, nil, nil, nil)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	b.AcceptTick(context.Background(), tickAt("BTC-USD", 100, base))
	b.AcceptTick(context.Background(), tickAt("BTC-USD", 105, base.Add(30*time.Second)))
	// crosses into the next 60s bucket — should close the first candle
	b.AcceptTick(context.Background(), tickAt("BTC-USD", 110, base.Add(61*time.Second)))

	require.Len(t, store.upserts, 1)
	closed := store.upserts[0]
	assert.Equal(t, 100.0, closed.Open)
	assert.Equal(t, 105.0, closed.Close)
	assert.Equal(t, 105.0, closed.High)
	assert.True(t, closed.Completed)
}

func TestBuilder_RollsUpIntoHigherTimeframe(t *testing.T) {
	store := &fakeCandleStore{}
	b := New(Config{BaseTF: 60, RollupTFs: []int{300}}, store, nil, nil, nil)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ { // 7 base candles spanning >300s, forcing the 300s rollup bucket to close
		b.AcceptTick(context.Background(), tickAt("ETH-USD", float64(100+i), base.Add(time.Duration(i*61)*time.Second)))
	}

	var rollups []model.Candle
	for _, c := range store.upserts {
		if c.TF == 300 {
			rollups = append(rollups, c)
		}
	}
	require.NotEmpty(t, rollups, "expected at least one completed 300s rollup candle")
	assert.Equal(t, 100.0, rollups[0].Open)
}

func TestBuilder_DropsOutOfOrderTicks(t *testing.T) {
	store := &fakeCandleStore{}
	b := New(Config{BaseTF: 60}, store, nil, nil, nil)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	b.AcceptTick(context.Background(), tickAt("BTC-USD", 100, base.Add(2*time.Minute)))
	b.AcceptTick(context.Background(), tickAt("BTC-USD", 999, base)) // earlier bucket: dropped

	assert.Equal(t, int64(1), b.droppedOutOfOrder)
	open := b.base["binance:BTC-USD"]
	require.NotNil(t, open)
	assert.Equal(t, 100.0, open.Close, "dropped out-of-order tick must not mutate the current open candle")
}

func TestBuilder_InvalidCandleStillEmittedAndRecorded(t *testing.T) {
	store := &fakeCandleStore{}
	qual := &fakeQualityStore{}
	b := New(Config{BaseTF: 60}, store, qual, nil, nil)

	// Directly feed an exchange-delivered bar that violates OHLC (high < close).
	bad := model.Candle{Symbol: "XRP-USD", Venue: "binance", TF: 60, TSBucket: time.Now().UTC(), Open: 10, High: 5, Low: 1, Close: 20, Volume: 1}
	b.AcceptBar(context.Background(), bad)

	require.Len(t, store.upserts, 1, "invalid candle must still be emitted")
	require.Len(t, qual.samples, 1)
	assert.Equal(t, "ohlc_invalid", qual.samples[0].CheckKind)
}

func TestBuilder_ZeroTickBucketNeverMaterializes(t *testing.T) {
	store := &fakeCandleStore{}
	b := New(Config{BaseTF: 60}, store, nil, nil, nil)
	assert.Empty(t, store.upserts)
	assert.Nil(t, b.base["binance:BTC-USD"])
}
