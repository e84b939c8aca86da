// Package quality implements the Quality Checker (spec 4.3): per-symbol
// finiteness/freshness/price-anomaly/volume-sanity checks run in order on
// every tick, an EMA(α=0.1) quality score, and a bounded quarantine ring of
// rejected (and 1%-sampled accepted) snapshots.
//
// Grounded on original_source/processors/data_quality.py: the four checks,
// their order, the 10-sample warm-up before anomaly checks engage, the
// z-score/pct-change/volume-multiple thresholds, and the 1% pass-sampling
// rate are all carried over from there, re-expressed as Go's explicit
// (bool, string) check results instead of Python tuples.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ringbuf"
)

// Config carries the checker's tunables (spec 4.3 defaults).
type Config struct {
	MaxAge           time.Duration // default 60s
	FutureSkew       time.Duration // default 5s
	ZScoreThreshold  float64       // default 3.0
	PctChangeThresh  float64       // default 0.10
	VolumeMultiplier float64       // default 100
	HistoryWindow    int           // default 100
	MinHistory       int           // default 10, samples required before anomaly checks engage
	QuarantineCap    int           // default 1000
	SampleRate       float64       // default 0.01, fraction of passes persisted
}

func (c Config) withDefaults() Config {
	if c.MaxAge <= 0 {
		c.MaxAge = 60 * time.Second
	}
	if c.FutureSkew <= 0 {
		c.FutureSkew = 5 * time.Second
	}
	if c.ZScoreThreshold <= 0 {
		c.ZScoreThreshold = 3.0
	}
	if c.PctChangeThresh <= 0 {
		c.PctChangeThresh = 0.10
	}
	if c.VolumeMultiplier <= 0 {
		c.VolumeMultiplier = 100
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 100
	}
	if c.MinHistory <= 0 {
		c.MinHistory = 10
	}
	if c.QuarantineCap <= 0 {
		c.QuarantineCap = 1000
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 0.01
	}
	return c
}

// QuarantineEntry is a rejected (or sampled accepted) tick snapshot.
type QuarantineEntry struct {
	Snapshot model.Tick
	Check    string
	Reason   string
	Score    float64
}

type symbolState struct {
	prices  []float64 // rolling window, oldest first, capped at HistoryWindow
	volumes []float64
	score   float64 // EMA quality score, starts at 1.0
}

// Checker runs the four ordered checks against every tick for a symbol.
// Not safe for concurrent calls to Check for the same process-wide ring —
// callers must drive it from a single consumer goroutine (the pipeline's
// bus subscriber loop), matching the quarantine ring's SPSC contract.
type Checker struct {
	cfg      Config
	store    model.QualityStore
	log      *slog.Logger
	rand     *rand.Rand
	state    map[string]*symbolState
	quarantine *ringbuf.Ring[QuarantineEntry]
}

func New(cfg Config, store model.QualityStore, log *slog.Logger, seed int64) *Checker {
	cfg = cfg.withDefaults()
	return &Checker{
		cfg:        cfg,
		store:      store,
		log:        log,
		rand:       rand.New(rand.NewSource(seed)),
		state:      make(map[string]*symbolState),
		quarantine: ringbuf.New[QuarantineEntry](cfg.QuarantineCap),
	}
}

// Check runs the ordered check battery on t. On pass, the tick's price and
// quantity are appended to the symbol's rolling history and (true, "") is
// returned. On the first failing check, a reason string is returned and the
// tick is quarantined; no further checks run (short-circuit, spec 4.3).
func (c *Checker) Check(ctx context.Context, t model.Tick) (bool, string) {
	key := t.Key()
	st, ok := c.state[key]
	if !ok {
		st = &symbolState{score: 1.0}
		c.state[key] = st
	}

	if ok, reason := c.checkFiniteAndSigns(t); !ok {
		c.fail(t, "finite_signs", reason, st)
		return false, reason
	}
	if ok, reason := c.checkFreshness(t); !ok {
		c.fail(t, "freshness", reason, st)
		return false, reason
	}
	if ok, reason := c.checkPriceAnomaly(t, st); !ok {
		c.fail(t, "price_anomaly", reason, st)
		return false, reason
	}
	if ok, reason := c.checkVolumeSanity(t, st); !ok {
		c.fail(t, "volume_sanity", reason, st)
		return false, reason
	}

	c.pass(t, st)
	c.updateHistory(t, st)
	return true, ""
}

func (c *Checker) checkFiniteAndSigns(t model.Tick) (bool, string) {
	if !isFinite(t.Price) || t.Price <= 0 {
		return false, fmt.Sprintf("invalid price: %v", t.Price)
	}
	if !isFinite(t.Quantity) || t.Quantity < 0 {
		return false, fmt.Sprintf("invalid quantity: %v", t.Quantity)
	}
	return true, ""
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Checker) checkFreshness(t model.Tick) (bool, string) {
	age := time.Since(t.TS)
	if age > c.cfg.MaxAge {
		return false, fmt.Sprintf("data too old: %s (max %s)", age, c.cfg.MaxAge)
	}
	if age < -c.cfg.FutureSkew {
		return false, fmt.Sprintf("data from future: %s", -age)
	}
	return true, ""
}

func (c *Checker) checkPriceAnomaly(t model.Tick, st *symbolState) (bool, string) {
	if len(st.prices) < c.cfg.MinHistory {
		return true, ""
	}
	mean, std := meanStd(st.prices)
	if std > 0 {
		z := math.Abs((t.Price - mean) / std)
		if z > c.cfg.ZScoreThreshold {
			return false, fmt.Sprintf("price anomaly (z-score %.2f)", z)
		}
	}
	last := st.prices[len(st.prices)-1]
	if last > 0 {
		pct := math.Abs((t.Price - last) / last)
		if pct > c.cfg.PctChangeThresh {
			return false, fmt.Sprintf("large price change: %.1f%%", pct*100)
		}
	}
	return true, ""
}

func (c *Checker) checkVolumeSanity(t model.Tick, st *symbolState) (bool, string) {
	if len(st.volumes) < c.cfg.MinHistory {
		return true, ""
	}
	mean, _ := meanStd(st.volumes)
	if mean > 0 {
		ratio := t.Quantity / mean
		if ratio > c.cfg.VolumeMultiplier {
			return false, fmt.Sprintf("volume %vx average (max %vx)", ratio, c.cfg.VolumeMultiplier)
		}
	}
	return true, ""
}

func (c *Checker) updateHistory(t model.Tick, st *symbolState) {
	st.prices = appendCapped(st.prices, t.Price, c.cfg.HistoryWindow)
	st.volumes = appendCapped(st.volumes, t.Quantity, c.cfg.HistoryWindow)
}

func appendCapped(s []float64, v float64, cap_ int) []float64 {
	s = append(s, v)
	if len(s) > cap_ {
		s = s[len(s)-cap_:]
	}
	return s
}

func meanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	for _, x := range xs {
		mean += x
	}
	mean /= n
	var sqsum float64
	for _, x := range xs {
		d := x - mean
		sqsum += d * d
	}
	std = math.Sqrt(sqsum / n)
	return
}

// fail pulls the quality score toward 0.0, quarantines the snapshot, and
// persists it at full rate (every failure is stored, spec 4.3).
func (c *Checker) fail(t model.Tick, check, reason string, st *symbolState) {
	st.score = ema(st.score, 0.0, 0.1)
	c.quarantine.Push(QuarantineEntry{Snapshot: t, Check: check, Reason: reason, Score: st.score})
	c.persist(t, check, model.QualityFail, reason, st.score)
}

// pass pulls the quality score toward 1.0 and samples ~1% of passes into
// the persistent quality log to bound write load (spec 4.3).
func (c *Checker) pass(t model.Tick, st *symbolState) {
	st.score = ema(st.score, 1.0, 0.1)
	if c.rand.Float64() < c.cfg.SampleRate {
		c.quarantine.Push(QuarantineEntry{Snapshot: t, Check: "all_checks", Reason: "", Score: st.score})
		c.persist(t, "all_checks", model.QualityPass, "", st.score)
	}
}

func (c *Checker) persist(t model.Tick, check string, outcome model.QualityOutcome, reason string, score float64) {
	if c.store == nil {
		return
	}
	sample := model.QualitySample{
		TS:           time.Now().UTC(),
		Symbol:       t.Symbol,
		Venue:        t.Venue,
		CheckKind:    check,
		Outcome:      outcome,
		Reason:       reason,
		QualityScore: score,
	}
	if err := c.store.InsertQualitySample(context.Background(), sample); err != nil && c.log != nil {
		c.log.Error("quality: persist sample failed", "error", err)
	}
}

func ema(prev, target, alpha float64) float64 {
	return prev + alpha*(target-prev)
}

// Score returns the current EMA quality score for a symbol (1.0 if unseen).
func (c *Checker) Score(venueSymbolKey string) float64 {
	if st, ok := c.state[venueSymbolKey]; ok {
		return st.score
	}
	return 1.0
}

// Quarantine returns a best-effort snapshot of the current quarantine ring
// without consuming it, oldest first.
func (c *Checker) Quarantine() []QuarantineEntry {
	return c.quarantine.Snapshot()
}
