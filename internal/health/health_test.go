package health

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	hashes map[string]map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{hashes: make(map[string]map[string]string)} }

func (f *fakeCache) SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}
func (f *fakeCache) GetHash(ctx context.Context, key string) (map[string]string, error) {
	return f.hashes[key], nil
}
func (f *fakeCache) PushSortedSet(ctx context.Context, key string, score float64, member string, trimTo int) error {
	return nil
}
func (f *fakeCache) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAggregate_UnhealthyWhenAnyComponentNotRunning(t *testing.T) {
	cache := newFakeCache()
	rec := NewRecorder(cache, testLogger())
	ctx := context.Background()
	rec.record(ctx, model.HealthReport{Component: "collector-coinbase", Running: true, Connected: true})
	rec.record(ctx, model.HealthReport{Component: "collector-iex", Running: false, Connected: false})

	agg := NewAggregator(cache)
	report, err := agg.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Len(t, report.Components, 2)
}

func TestAggregate_DegradedWhenRunningButDisconnected(t *testing.T) {
	cache := newFakeCache()
	rec := NewRecorder(cache, testLogger())
	ctx := context.Background()
	rec.record(ctx, model.HealthReport{Component: "collector-coinbase", Running: true, Connected: false})

	agg := NewAggregator(cache)
	report, err := agg.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, report.Status)
}

func TestAggregate_HealthyWhenAllConnected(t *testing.T) {
	cache := newFakeCache()
	rec := NewRecorder(cache, testLogger())
	ctx := context.Background()
	rec.record(ctx, model.HealthReport{Component: "collector-coinbase", Running: true, Connected: true, At: time.Now()})

	agg := NewAggregator(cache)
	report, err := agg.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestRun_DrainsBusMessagesUntilClosed(t *testing.T) {
	cache := newFakeCache()
	rec := NewRecorder(cache, testLogger())
	ch := make(chan model.BusMessage, 1)
	ch <- model.HealthReport{Component: "collector-coinbase", Running: true, Connected: true}
	close(ch)

	rec.Run(context.Background(), ch)

	raw, ok := cache.hashes[cacheKey]["collector-coinbase"]
	require.True(t, ok)
	var hr model.HealthReport
	require.NoError(t, json.Unmarshal([]byte(raw), &hr))
	assert.True(t, hr.Connected)
}
