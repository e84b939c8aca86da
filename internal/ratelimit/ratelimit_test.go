package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memCache struct {
	mu          sync.Mutex
	hashes      map[string]map[string]string
	unreachable bool
}

func newMemCache() *memCache { return &memCache{hashes: make(map[string]map[string]string)} }

func (m *memCache) SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error {
	if m.unreachable {
		return errors.New("cache down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[key] = fields
	return nil
}

func (m *memCache) GetHash(ctx context.Context, key string) (map[string]string, error) {
	if m.unreachable {
		return nil, errors.New("cache down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[key], nil
}

func (m *memCache) PushSortedSet(ctx context.Context, key string, score float64, member string, maxLen int) error {
	return nil
}

func (m *memCache) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func TestAllow_NewBucketStartsAtCapacity(t *testing.T) {
	cache := newMemCache()
	l := New(cache, 5, 5, time.Second, testLogger())

	d := l.Allow(context.Background(), "client-a", 1)
	assert.True(t, d.Allowed)
}

func TestAllow_DeniesWhenExhausted(t *testing.T) {
	cache := newMemCache()
	l := New(cache, 2, 2, time.Second, testLogger())

	require.True(t, l.Allow(context.Background(), "client-a", 1).Allowed)
	require.True(t, l.Allow(context.Background(), "client-a", 1).Allowed)

	d := l.Allow(context.Background(), "client-a", 1)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	cache := newMemCache()
	l := New(cache, 1, 1, time.Millisecond, testLogger())

	require.True(t, l.Allow(context.Background(), "client-a", 1).Allowed)
	require.False(t, l.Allow(context.Background(), "client-a", 1).Allowed)

	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow(context.Background(), "client-a", 1).Allowed)
}

func TestAllow_FailsOpenWhenCacheUnreachable(t *testing.T) {
	cache := newMemCache()
	cache.unreachable = true
	l := New(cache, 1, 1, time.Second, testLogger())

	d := l.Allow(context.Background(), "client-a", 1)
	assert.True(t, d.Allowed)
}

func TestLocalLimiter_RejectsBeyondBurst(t *testing.T) {
	limiter := NewLocalLimiter(1, 1)
	handler := limiter.Middleware(func(r *http.Request) string { return "fixed" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}
