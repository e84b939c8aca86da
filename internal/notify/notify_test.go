package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeCache struct {
	channel string
	payload []byte
}

func (f *fakeCache) SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error {
	return nil
}
func (f *fakeCache) GetHash(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeCache) PushSortedSet(ctx context.Context, key string, score float64, member string, maxLen int) error {
	return nil
}
func (f *fakeCache) Publish(ctx context.Context, channel string, payload []byte) error {
	f.channel, f.payload = channel, payload
	return nil
}

func sampleAlert() model.Alert {
	return model.Alert{
		Rule:   model.AlertRule{ID: "r1", User: "alice", Condition: model.ConditionPriceAbove, Threshold: 100},
		Symbol: "BTC-USD",
		Price:  150,
		Reason: "price above threshold",
	}
}

func TestWSChannel_PublishesToUserChannel(t *testing.T) {
	cache := &fakeCache{}
	ch := NewWSChannel(cache)

	require.NoError(t, ch.Send(context.Background(), sampleAlert()))
	assert.Equal(t, "alerts:alice", cache.channel)

	var env wsAlertEnvelope
	require.NoError(t, json.Unmarshal(cache.payload, &env))
	assert.Equal(t, "alert", env.Type)
	assert.Equal(t, "BTC-USD", env.Symbol)
}

func TestEmailChannel_NeverErrors(t *testing.T) {
	ch := NewEmailChannel(testLogger())
	assert.NoError(t, ch.Send(context.Background(), sampleAlert()))
}

func TestWebhookChannel_PostsJSONToConfiguredURL(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := sampleAlert()
	a.Rule.Metadata = map[string]string{"webhook_url": srv.URL}

	ch := NewWebhookChannel()
	require.NoError(t, ch.Send(context.Background(), a))
	assert.Equal(t, "BTC-USD", received["symbol"])
}

func TestWebhookChannel_MissingURLErrors(t *testing.T) {
	ch := NewWebhookChannel()
	assert.Error(t, ch.Send(context.Background(), sampleAlert()))
}

func TestSlackChannel_PostsBlockKitPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := sampleAlert()
	a.Rule.Metadata = map[string]string{"slack_webhook_url": srv.URL}

	ch := NewSlackChannel()
	require.NoError(t, ch.Send(context.Background(), a))
	assert.Contains(t, received, "blocks")
}

func TestRouter_DispatchesByChannel(t *testing.T) {
	cache := &fakeCache{}
	router := NewRouter(NewWSChannel(cache), NewEmailChannel(testLogger()), NewWebhookChannel(), NewSlackChannel(), testLogger())

	require.NoError(t, router.Send(context.Background(), model.ChannelWS, sampleAlert()))
	assert.Equal(t, "alerts:alice", cache.channel)

	assert.Error(t, router.Send(context.Background(), "bogus", sampleAlert()))
}
