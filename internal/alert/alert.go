// Package alert implements the Alert Engine (spec 4.7): per-symbol rule
// evaluation against (price, indicators) on every bar completion, with
// cooldown, one-shot, and MACD-crossover metadata semantics.
//
// Grounded on original_source/api/alert_manager.py's AlertManager: the
// condition table (PRICE_ABOVE/BELOW, RSI_ABOVE/BELOW, MACD_CROSSOVER,
// VOLUME_SPIKE), the cooldown/one-shot/active gating order, the
// prev_macd/prev_signal crossover-detection metadata, and concurrent
// fan-out to notification channels with per-channel failure isolation.
package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Dispatcher delivers a fired alert on one channel. Implementations (ws,
// email, webhook, slack) each own their own timeout and retry policy;
// the Engine itself enforces the spec's 10s-per-channel ceiling.
type Dispatcher interface {
	Send(ctx context.Context, channel model.AlertChannel, alert model.Alert) error
}

const (
	rulesCacheTTLSeconds = 300
	channelTimeout       = 10 * time.Second
)

// Engine evaluates a symbol's active rule set against every bar.
type Engine struct {
	store      model.AlertStore
	cache      model.Cache
	dispatcher Dispatcher
	log        *slog.Logger

	mu    sync.Mutex
	dirty map[string]bool // symbols whose rule cache was invalidated by a mutation
}

func New(store model.AlertStore, cache model.Cache, dispatcher Dispatcher, log *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		cache:      cache,
		dispatcher: dispatcher,
		log:        log,
		dirty:      make(map[string]bool),
	}
}

func rulesCacheKey(symbol string) string { return "alert_rules:" + symbol }

// loadRules returns the active rule set for symbol, preferring the cache
// unless a mutation marked it dirty (the Cache port has no delete, so
// invalidation is a local force-reload instead of an eviction).
func (e *Engine) loadRules(ctx context.Context, symbol string) ([]model.AlertRule, error) {
	e.mu.Lock()
	forceReload := e.dirty[symbol]
	e.mu.Unlock()

	if !forceReload && e.cache != nil {
		if fields, err := e.cache.GetHash(ctx, rulesCacheKey(symbol)); err == nil {
			if raw, ok := fields["rules"]; ok {
				var rules []model.AlertRule
				if json.Unmarshal([]byte(raw), &rules) == nil {
					return rules, nil
				}
			}
		}
	}

	rules, err := e.store.ActiveRules(ctx, symbol)
	if err != nil {
		return nil, err
	}
	e.refreshCache(ctx, symbol, rules)
	return rules, nil
}

func (e *Engine) refreshCache(ctx context.Context, symbol string, rules []model.AlertRule) {
	e.mu.Lock()
	delete(e.dirty, symbol)
	e.mu.Unlock()

	if e.cache == nil {
		return
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return
	}
	if err := e.cache.SetHash(ctx, rulesCacheKey(symbol), map[string]string{"rules": string(payload)}, rulesCacheTTLSeconds); err != nil {
		e.log.Error("cache alert rules failed", "symbol", symbol, "error", err)
	}
}

func (e *Engine) invalidate(symbol string) {
	e.mu.Lock()
	e.dirty[symbol] = true
	e.mu.Unlock()
}

// Evaluate runs every active rule for symbol against (price, row) — the
// Alert Engine's invocation point from the Indicator Engine (spec 4.5
// step 4: "Invoke Alert Engine with (symbol, price=bar.close, indicators)").
func (e *Engine) Evaluate(ctx context.Context, symbol string, price float64, row model.IndicatorRow) {
	rules, err := e.loadRules(ctx, symbol)
	if err != nil {
		e.log.Error("load alert rules failed", "symbol", symbol, "error", err)
		return
	}

	for _, rule := range rules {
		e.evaluateOne(ctx, rule, symbol, price, row)
	}
}

func (e *Engine) evaluateOne(ctx context.Context, rule model.AlertRule, symbol string, price float64, row model.IndicatorRow) {
	if !rule.IsActive {
		return
	}
	if rule.LastFiredAt != nil && time.Since(*rule.LastFiredAt) < time.Duration(rule.CooldownS)*time.Second {
		return
	}
	if rule.OneShot && rule.FireCount > 0 {
		return
	}

	fired, reason, metadataChanged := evaluateCondition(&rule, price, row)

	if metadataChanged {
		// MACD_CROSSOVER updates prev_macd/prev_signal regardless of whether
		// it fired this time — persist that unconditionally.
		if err := e.store.SaveRuleFireState(ctx, rule); err != nil {
			e.log.Error("persist alert metadata failed", "rule", rule.ID, "error", err)
		}
		e.invalidate(symbol)
	}
	if !fired {
		return
	}

	e.fire(ctx, rule, symbol, price, reason)
}

// evaluateCondition returns (fired, humanReadableReason, metadataChanged).
func evaluateCondition(rule *model.AlertRule, price float64, row model.IndicatorRow) (bool, string, bool) {
	switch rule.Condition {
	case model.ConditionPriceAbove:
		return price > rule.Threshold, "price above threshold", false
	case model.ConditionPriceBelow:
		return price < rule.Threshold, "price below threshold", false

	case model.ConditionRSIAbove:
		if row.RSI == nil {
			return false, "", false
		}
		return *row.RSI > rule.Threshold, "rsi above threshold", false
	case model.ConditionRSIBelow:
		if row.RSI == nil {
			return false, "", false
		}
		return *row.RSI < rule.Threshold, "rsi below threshold", false

	case model.ConditionMACDCrossover:
		return evaluateMACDCrossover(rule, row)

	case model.ConditionVolumeSpike:
		if row.VolumeSMA == nil {
			return false, "", false
		}
		// VOLUME_SPIKE compares the current bar's volume to its own
		// trailing SMA — the indicator row carries the SMA; the raw volume
		// is read from rule.Metadata["last_volume"]. Evaluate receives no
		// bar volume and cmd/pipeline does not set that field, so a rule
		// whose metadata lacks it never fires.
		lastVolume, ok := parseFloat(rule.Metadata["last_volume"])
		if !ok {
			return false, "", false
		}
		return lastVolume > rule.Threshold*(*row.VolumeSMA), "volume spike", false

	default:
		return false, "", false
	}
}

func evaluateMACDCrossover(rule *model.AlertRule, row model.IndicatorRow) (bool, string, bool) {
	if row.MACDLine == nil || row.MACDSignal == nil {
		return false, "", false
	}
	macd, signal := *row.MACDLine, *row.MACDSignal

	var fired bool
	prevMACD, havePrevMACD := parseFloat(rule.Metadata["prev_macd"])
	prevSignal, havePrevSignal := parseFloat(rule.Metadata["prev_signal"])
	if havePrevMACD && havePrevSignal {
		if rule.Threshold > 0 {
			fired = prevMACD <= prevSignal && macd > signal // bullish
		} else {
			fired = prevMACD >= prevSignal && macd < signal // bearish
		}
	}

	if rule.Metadata == nil {
		rule.Metadata = make(map[string]string, 2)
	}
	rule.Metadata["prev_macd"] = strconv.FormatFloat(macd, 'f', -1, 64)
	rule.Metadata["prev_signal"] = strconv.FormatFloat(signal, 'f', -1, 64)

	reason := "macd bearish crossover"
	if rule.Threshold > 0 {
		reason = "macd bullish crossover"
	}
	return fired, reason, true
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (e *Engine) fire(ctx context.Context, rule model.AlertRule, symbol string, price float64, reason string) {
	firedAt := time.Now().UTC()
	a := model.Alert{Rule: rule, Symbol: symbol, Price: price, FiredAt: firedAt, Reason: reason}

	e.dispatchAll(ctx, rule, a)

	rule.LastFiredAt = &firedAt
	rule.FireCount++
	if rule.OneShot {
		rule.IsActive = false
	}
	if err := e.store.SaveRuleFireState(ctx, rule); err != nil {
		e.log.Error("persist fire state failed", "rule", rule.ID, "error", err)
	}
	e.invalidate(symbol)
}

// dispatchAll fans the alert out to every channel concurrently — a
// failure on one channel never suppresses the others (spec 4.7).
func (e *Engine) dispatchAll(ctx context.Context, rule model.AlertRule, a model.Alert) {
	var wg sync.WaitGroup
	for _, ch := range rule.Channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, channelTimeout)
			defer cancel()
			if err := e.dispatcher.Send(cctx, ch, a); err != nil {
				e.log.Error("alert dispatch failed", "rule", rule.ID, "channel", ch, "error", err)
			}
		}()
	}
	wg.Wait()
}
