package alert

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	rules map[string][]model.AlertRule // symbol -> rules
	saved []model.AlertRule
}

func newFakeStore(rules ...model.AlertRule) *fakeStore {
	s := &fakeStore{rules: make(map[string][]model.AlertRule)}
	for _, r := range rules {
		s.rules[r.Symbol] = append(s.rules[r.Symbol], r)
	}
	return s
}

func (s *fakeStore) ActiveRules(ctx context.Context, symbol string) ([]model.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AlertRule, len(s.rules[symbol]))
	copy(out, s.rules[symbol])
	return out, nil
}

func (s *fakeStore) SaveRuleFireState(ctx context.Context, r model.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return nil
}

func (s *fakeStore) RulesByUser(ctx context.Context, user string) ([]model.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AlertRule
	for _, rs := range s.rules {
		for _, r := range rs {
			if r.User == user {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) RuleByID(ctx context.Context, id string) (*model.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.rules {
		for _, r := range rs {
			if r.ID == id {
				cp := r
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) UpsertRule(ctx context.Context, r model.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.rules[r.Symbol]
	for i, existing := range rs {
		if existing.ID == r.ID {
			rs[i] = r
			s.rules[r.Symbol] = rs
			return nil
		}
	}
	s.rules[r.Symbol] = append(rs, r)
	return nil
}

func (s *fakeStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, rs := range s.rules {
		for i, r := range rs {
			if r.ID == id {
				s.rules[symbol] = append(rs[:i], rs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakeDispatcher struct {
	mu  sync.Mutex
	got []model.Alert
}

func (d *fakeDispatcher) Send(ctx context.Context, channel model.AlertChannel, a model.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, a)
	return nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(noopWriter{}, nil)) }

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestEvaluate_PriceAboveFires(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionPriceAbove, Threshold: 100, IsActive: true, Channels: []model.AlertChannel{model.ChannelWS}}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 150, model.IndicatorRow{})

	require.Len(t, disp.got, 1)
	assert.Equal(t, "BTC-USD", disp.got[0].Symbol)
	require.Len(t, store.saved, 1)
	assert.Equal(t, 1, store.saved[0].FireCount)
}

func TestEvaluate_InactiveRuleNeverFires(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionPriceAbove, Threshold: 100, IsActive: false}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 150, model.IndicatorRow{})

	assert.Empty(t, disp.got)
}

func TestEvaluate_CooldownSuppressesRefire(t *testing.T) {
	recent := time.Now().Add(-1 * time.Second)
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionPriceAbove, Threshold: 100, IsActive: true, CooldownS: 300, LastFiredAt: &recent}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 150, model.IndicatorRow{})

	assert.Empty(t, disp.got)
}

func TestEvaluate_OneShotFiresOnceThenDeactivates(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionPriceAbove, Threshold: 100, IsActive: true, OneShot: true}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 150, model.IndicatorRow{})

	require.Len(t, store.saved, 1)
	assert.False(t, store.saved[0].IsActive)
}

func TestEvaluate_RSIAboveRequiresNonNilRSI(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionRSIAbove, Threshold: 70, IsActive: true}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 0, model.IndicatorRow{})
	assert.Empty(t, disp.got)

	rsi := 80.0
	e.Evaluate(context.Background(), "BTC-USD", 0, model.IndicatorRow{RSI: &rsi})
	assert.Len(t, disp.got, 1)
}

func TestEvaluate_MACDCrossoverNeedsTwoObservations(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionMACDCrossover, Threshold: 1, IsActive: true}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	below, above := -1.0, 0.0
	// First observation: macd below signal. No prior state, so this cannot fire yet.
	e.Evaluate(context.Background(), "BTC-USD", 0, model.IndicatorRow{MACDLine: &below, MACDSignal: &above})
	assert.Empty(t, disp.got)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "-1", store.saved[0].Metadata["prev_macd"])

	// Second observation: macd crosses above signal -> bullish crossover fires.
	// No cache is configured, so every Evaluate call reloads straight from
	// store — seed the store with the metadata persisted by the first call.
	aboveMACD, sig := 1.0, 0.0
	store.rules["BTC-USD"][0].Metadata = store.saved[0].Metadata

	e.Evaluate(context.Background(), "BTC-USD", 0, model.IndicatorRow{MACDLine: &aboveMACD, MACDSignal: &sig})
	assert.Len(t, disp.got, 1)
}

func TestEvaluate_VolumeSpikeUsesMetadataVolume(t *testing.T) {
	rule := model.AlertRule{
		ID: "r1", Symbol: "BTC-USD", Condition: model.ConditionVolumeSpike, Threshold: 2, IsActive: true,
		Metadata: map[string]string{"last_volume": "500"},
	}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	sma := 100.0
	e.Evaluate(context.Background(), "BTC-USD", 0, model.IndicatorRow{VolumeSMA: &sma})
	assert.Len(t, disp.got, 1) // 500 > 2*100
}

func TestEvaluate_NoDispatcherCallOnUnknownCondition(t *testing.T) {
	rule := model.AlertRule{ID: "r1", Symbol: "BTC-USD", Condition: "BOGUS", Threshold: 1, IsActive: true}
	store := newFakeStore(rule)
	disp := &fakeDispatcher{}
	e := New(store, nil, disp, testLogger())

	e.Evaluate(context.Background(), "BTC-USD", 999, model.IndicatorRow{})
	assert.Empty(t, disp.got)
}
