// Package barbuilder implements the Bar Builder (spec 4.4): maintains at
// most one open candle per (symbol, timeframe), closing and rolling up into
// higher timeframes as base candles complete.
//
// Grounded on the teacher's internal/marketdata/tfbuilder.Builder for the
// per-(symbol,tf) forming-state map and "finalize on bucket change" shape,
// generalized from resampling pre-built 1s candles into building the base
// timeframe directly from ticks (spec 4.4's base-timeframe path) and then
// rolling that up exactly as tfbuilder rolled 1s candles into TF candles.
package barbuilder

import (
	"context"
	"log/slog"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ringbuf"
)

// Config carries the builder's tunables.
type Config struct {
	BaseTF      int   // base timeframe in seconds, default 60 (spec: "default 1m")
	RollupTFs   []int // higher aggregation timeframes, e.g. [300, 900, 3600]
	RingSize    int   // per (symbol,tf) completed-candle ring capacity, default 1000
}

func (c Config) withDefaults() Config {
	if c.BaseTF <= 0 {
		c.BaseTF = 60
	}
	if c.RingSize <= 0 {
		c.RingSize = 1000
	}
	return c
}

// Builder is single-consumer: callers must drive AcceptTick/AcceptBar from
// one goroutine overall. The state maps are shared by every symbol and
// have no internal locking.
type Builder struct {
	cfg   Config
	store model.CandleStore
	qual  model.QualityStore
	bus   *bus.Bus
	log   *slog.Logger

	// base[venue:symbol] is the single open base-timeframe candle.
	base map[string]*model.Candle
	// rollup[venue:symbol][tf] is the open rolled-up candle for that TF.
	rollup map[string]map[int]*model.Candle

	rings map[string]map[int]*ringbuf.Ring[model.Candle]

	droppedOutOfOrder int64
	invalidCandles    int64
}

func New(cfg Config, store model.CandleStore, qual model.QualityStore, b *bus.Bus, log *slog.Logger) *Builder {
	cfg = cfg.withDefaults()
	return &Builder{
		cfg:    cfg,
		store:  store,
		qual:   qual,
		bus:    b,
		log:    log,
		base:   make(map[string]*model.Candle),
		rollup: make(map[string]map[int]*model.Candle),
		rings:  make(map[string]map[int]*ringbuf.Ring[model.Candle]),
	}
}

func bucketOf(t time.Time, tfSeconds int) time.Time {
	sec := t.Unix()
	floored := sec - sec%int64(tfSeconds)
	return time.Unix(floored, 0).UTC()
}

// AcceptTick implements the base-timeframe path (spec 4.4): on each
// accepted tick, compute its bucket; if no open candle or the bucket
// differs, close the previous one (finalizing + rolling up) and open a new
// one; otherwise extend the open candle in place.
func (b *Builder) AcceptTick(ctx context.Context, t model.Tick) {
	key := t.Venue + ":" + t.Symbol
	bucket := bucketOf(t.TS, b.cfg.BaseTF)

	open, exists := b.base[key]
	if exists && bucket.Before(open.TSBucket) {
		b.droppedOutOfOrder++ // out-of-order tick behind the current bucket: dropped, base TF is forward-only
		return
	}

	if exists && bucket.Equal(open.TSBucket) {
		open.High = maxF(open.High, t.Price)
		open.Low = minF(open.Low, t.Price)
		open.Close = t.Price
		open.Volume += t.Quantity
		open.TradeCount++
		return
	}

	if exists {
		b.closeCandle(ctx, open)
	}

	b.base[key] = &model.Candle{
		Symbol: t.Symbol, Venue: t.Venue, TF: b.cfg.BaseTF, TSBucket: bucket,
		Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price,
		Volume: t.Quantity, TradeCount: 1, Completed: false,
	}
}

// AcceptBar accepts an exchange-delivered, already-completed bar (spec
// 4.2: "for exchange-delivered bars, publish to bars:completed" — these
// bypass tick-by-tick aggregation but still roll up into higher TFs and
// get the same completion side effects).
func (b *Builder) AcceptBar(ctx context.Context, c model.Candle) {
	c.Completed = true
	b.completeCandle(ctx, c)
}

// closeCandle finalizes the currently open base candle for its key and
// runs its completion side effects.
func (b *Builder) closeCandle(ctx context.Context, c *model.Candle) {
	c.Completed = true
	b.completeCandle(ctx, *c)
}

// completeCandle runs the completion side effects (persist, publish,
// ring-append, spec 4.4) and rolls the candle up into every configured
// higher timeframe.
func (b *Builder) completeCandle(ctx context.Context, c model.Candle) {
	if !c.Valid() {
		b.invalidCandles++
		if b.log != nil {
			b.log.Warn("invalid candle closed", "key", c.Key(), "ts_bucket", c.TSBucket)
		}
		b.recordInvalid(ctx, c)
		// still emitted: downstream must tolerate invalid OHLC (spec 4.4)
	}

	b.persistAndPublish(ctx, c)
	b.appendRing(c)

	if c.TF == b.cfg.BaseTF {
		for _, tf := range b.cfg.RollupTFs {
			b.rollupInto(ctx, c, tf)
		}
	}
}

func (b *Builder) rollupInto(ctx context.Context, base model.Candle, tf int) {
	key := base.Venue + ":" + base.Symbol
	byTF, ok := b.rollup[key]
	if !ok {
		byTF = make(map[int]*model.Candle)
		b.rollup[key] = byTF
	}

	bucket := bucketOf(base.TSBucket, tf)
	open, exists := byTF[tf]

	if exists && bucket.Equal(open.TSBucket) {
		open.High = maxF(open.High, base.High)
		open.Low = minF(open.Low, base.Low)
		open.Close = base.Close
		open.Volume += base.Volume
		open.TradeCount += base.TradeCount
		return
	}

	if exists {
		b.closeCandle(ctx, open)
	}

	byTF[tf] = &model.Candle{
		Symbol: base.Symbol, Venue: base.Venue, TF: tf, TSBucket: bucket,
		Open: base.Open, High: base.High, Low: base.Low, Close: base.Close,
		Volume: base.Volume, TradeCount: base.TradeCount, Completed: false,
	}
}

func (b *Builder) persistAndPublish(ctx context.Context, c model.Candle) {
	if b.store != nil {
		if err := b.store.UpsertCandle(ctx, c); err != nil && b.log != nil {
			b.log.Error("barbuilder: persist candle failed", "error", err, "key", c.Key())
		}
	}
	if b.bus != nil {
		b.bus.Publish(model.BarCompletedMsg{Candle: c})
	}
}

func (b *Builder) appendRing(c model.Candle) {
	key := c.Venue + ":" + c.Symbol
	byTF, ok := b.rings[key]
	if !ok {
		byTF = make(map[int]*ringbuf.Ring[model.Candle])
		b.rings[key] = byTF
	}
	ring, ok := byTF[c.TF]
	if !ok {
		ring = ringbuf.New[model.Candle](b.cfg.RingSize)
		byTF[c.TF] = ring
	}
	if !ring.Push(c) {
		// Full: drop the oldest candle so the ring keeps the most recent ones.
		ring.Pop()
		ring.Push(c)
	}
}

func (b *Builder) recordInvalid(ctx context.Context, c model.Candle) {
	if b.qual == nil {
		return
	}
	sample := model.QualitySample{
		TS: time.Now().UTC(), Symbol: c.Symbol, Venue: c.Venue,
		CheckKind: "ohlc_invalid", Outcome: model.QualityFail,
		Reason: "candle failed OHLC invariant check", QualityScore: 0,
	}
	if err := b.qual.InsertQualitySample(ctx, sample); err != nil && b.log != nil {
		b.log.Error("barbuilder: record invalid candle quality sample failed", "error", err)
	}
}

// Ring returns the completed-candle ring for (symbol, venue, tf), used by
// the indicator engine to load its N=200-candle window without a storage
// round-trip on every bar close.
func (b *Builder) Ring(venue, symbol string, tf int) *ringbuf.Ring[model.Candle] {
	key := venue + ":" + symbol
	byTF, ok := b.rings[key]
	if !ok {
		return nil
	}
	return byTF[tf]
}

// Flush closes every currently-open candle (base and rollup), used at
// shutdown so the last partial bucket isn't silently lost.
func (b *Builder) Flush(ctx context.Context) {
	for _, open := range b.base {
		b.closeCandle(ctx, open)
	}
	for _, byTF := range b.rollup {
		for _, open := range byTF {
			b.closeCandle(ctx, open)
		}
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
