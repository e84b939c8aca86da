package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Window size for the fixed indicator recompute (spec 4.5: "N=200").
const WindowSize = 200

// WindowLoader returns the most recent candles for (symbol, venue, tf),
// newest-last, capped at WindowSize. Implementations try the bar builder's
// in-memory ring first and fall back to the candle store (spec 4.5:
// "cache if present, else storage").
type WindowLoader func(ctx context.Context, symbol, venue string, tf int) ([]model.Candle, error)

// Config controls the Engine's periods. Defaults match spec 4.5 exactly.
type Config struct {
	RSIPeriod                    int
	MACDFast, MACDSlow, MACDSig  int
	BollPeriod                   int
	BollStdev                    float64
	SMAPeriods                   []int
	EMAPeriods                   []int
	StochK, StochKSmooth, StochD int
	ATRPeriod                    int
	ADXPeriod                    int
	VolumeSMAPeriod              int
}

func (c Config) withDefaults() Config {
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.MACDFast == 0 {
		c.MACDFast, c.MACDSlow, c.MACDSig = 12, 26, 9
	}
	if c.BollPeriod == 0 {
		c.BollPeriod = 20
	}
	if c.BollStdev == 0 {
		c.BollStdev = 2
	}
	if len(c.SMAPeriods) == 0 {
		c.SMAPeriods = []int{20, 50, 100, 200}
	}
	if len(c.EMAPeriods) == 0 {
		c.EMAPeriods = []int{12, 26, 50}
	}
	if c.StochK == 0 {
		c.StochK, c.StochKSmooth, c.StochD = 14, 3, 3
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = 14
	}
	if c.ADXPeriod == 0 {
		c.ADXPeriod = 14
	}
	if c.VolumeSMAPeriod == 0 {
		c.VolumeSMAPeriod = 20
	}
	return c
}

// ComputeRow recomputes the full indicator set over window (oldest-first)
// and returns the row for the last candle. Fields stay nil when the window
// is shorter than the period they require.
func ComputeRow(cfg Config, symbol string, tf int, window []model.Candle) model.IndicatorRow {
	cfg = cfg.withDefaults()
	row := model.IndicatorRow{Symbol: symbol, TF: tf}
	if len(window) == 0 {
		return row
	}
	row.TSBucket = window[len(window)-1].TSBucket

	rsi := NewRSI(cfg.RSIPeriod)
	macd := NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSig)
	boll := NewBollinger(cfg.BollPeriod, cfg.BollStdev)
	smas := make(map[int]*SMA, len(cfg.SMAPeriods))
	for _, p := range cfg.SMAPeriods {
		smas[p] = NewSMA(p)
	}
	emas := make(map[int]*EMA, len(cfg.EMAPeriods))
	for _, p := range cfg.EMAPeriods {
		emas[p] = NewEMA(p)
	}
	vwap := NewVWAP()
	stoch := NewStochastic(cfg.StochK, cfg.StochKSmooth, cfg.StochD)
	atr := NewATR(cfg.ATRPeriod)
	adx := NewADX(cfg.ADXPeriod)
	volSMA := NewVolumeSMA(cfg.VolumeSMAPeriod)

	for _, c := range window {
		rsi.Update(c)
		macd.Update(c)
		boll.Update(c)
		for _, s := range smas {
			s.Update(c)
		}
		for _, e := range emas {
			e.Update(c)
		}
		vwap.Update(c)
		stoch.Update(c)
		atr.Update(c)
		adx.Update(c)
		volSMA.Update(c)
	}

	if rsi.Ready() {
		row.RSI = ptr(rsi.Value())
	}
	if mr := macd.Result(); mr.Ready {
		row.MACDLine, row.MACDSignal, row.MACDHist = ptr(mr.Line), ptr(mr.Signal), ptr(mr.Hist)
	}
	if br := boll.Result(); br.Ready {
		row.BollUpper, row.BollMiddle, row.BollLower = ptr(br.Upper), ptr(br.Middle), ptr(br.Lower)
	}
	assignSMA(&row, 20, smas)
	assignSMA(&row, 50, smas)
	assignSMA(&row, 100, smas)
	assignSMA(&row, 200, smas)
	assignEMA(&row, 12, emas)
	assignEMA(&row, 26, emas)
	assignEMA(&row, 50, emas)
	if vwap.Ready() {
		row.VWAP = ptr(vwap.Value())
	}
	if sr := stoch.Result(); sr.Ready {
		row.StochK, row.StochD = ptr(sr.K), ptr(sr.D)
	}
	if atr.Ready() {
		row.ATR = ptr(atr.Value())
	}
	if adx.Ready() {
		row.ADX = ptr(adx.Value())
	}
	if volSMA.Ready() {
		row.VolumeSMA = ptr(volSMA.Value())
	}
	return row
}

func assignSMA(row *model.IndicatorRow, period int, smas map[int]*SMA) {
	s, ok := smas[period]
	if !ok || !s.Ready() {
		return
	}
	v := s.Value()
	switch period {
	case 20:
		row.SMA20 = &v
	case 50:
		row.SMA50 = &v
	case 100:
		row.SMA100 = &v
	case 200:
		row.SMA200 = &v
	}
}

func assignEMA(row *model.IndicatorRow, period int, emas map[int]*EMA) {
	e, ok := emas[period]
	if !ok || !e.Ready() {
		return
	}
	v := e.Value()
	switch period {
	case 12:
		row.EMA12 = &v
	case 26:
		row.EMA26 = &v
	case 50:
		row.EMA50 = &v
	}
}

func ptr(v float64) *float64 { return &v }

// Handoff is invoked after an indicator row has been upserted, cached, and
// published — it carries the row to the Alert Engine and Feature Engineer
// (spec 4.5 steps 4-5).
type Handoff func(ctx context.Context, candle model.Candle, row model.IndicatorRow, window []model.Candle)

// Engine recomputes indicator rows on every bars:completed event.
type Engine struct {
	cfg     Config
	load    WindowLoader
	store   model.IndicatorStore
	cache   model.Cache
	bus     *bus.Bus
	log     *slog.Logger
	handoff Handoff

	mu      sync.Mutex
	workers map[string]chan model.Candle
}

func New(cfg Config, load WindowLoader, store model.IndicatorStore, cache model.Cache, b *bus.Bus, handoff Handoff, log *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		load:    load,
		store:   store,
		cache:   cache,
		bus:     b,
		handoff: handoff,
		log:     log,
		workers: make(map[string]chan model.Candle),
	}
}

// Run subscribes to bars:completed and fans each candle out to a per-key
// worker goroutine, so computation for a given (symbol, tf) is strictly
// sequential while different keys proceed in parallel (spec 4.5 ordering
// guarantee).
func (e *Engine) Run(ctx context.Context) {
	ch := e.bus.SubscribeChannels("bars:completed")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			bc, ok := msg.(model.BarCompletedMsg)
			if !ok {
				continue
			}
			e.dispatch(ctx, bc.Candle)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, c model.Candle) {
	key := c.Key()
	e.mu.Lock()
	w, exists := e.workers[key]
	if !exists {
		w = make(chan model.Candle, 64)
		e.workers[key] = w
		go e.worker(ctx, c.Venue, c.Symbol, c.TF, w)
	}
	e.mu.Unlock()

	select {
	case w <- c:
	case <-ctx.Done():
	}
}

func (e *Engine) worker(ctx context.Context, venue, symbol string, tf int, in <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			e.process(ctx, venue, symbol, tf, c)
		}
	}
}

func (e *Engine) process(ctx context.Context, venue, symbol string, tf int, c model.Candle) {
	window, err := e.load(ctx, symbol, venue, tf)
	if err != nil {
		e.log.Error("load window failed", "symbol", symbol, "tf", tf, "error", err)
		return
	}
	if len(window) == 0 {
		return
	}
	row := ComputeRow(e.cfg, symbol, tf, window)

	if err := e.store.UpsertIndicatorRow(ctx, row); err != nil {
		e.log.Error("upsert indicator row failed", "symbol", symbol, "tf", tf, "error", err)
	}

	if e.cache != nil {
		if err := e.cache.SetHash(ctx, row.CacheKey(), indicatorFields(row), 300); err != nil {
			e.log.Error("cache indicator row failed", "symbol", symbol, "tf", tf, "error", err)
		}
	}

	e.bus.Publish(model.ChartUpdateMsg{Candle: c, Indicators: row})

	if e.handoff != nil {
		e.handoff(ctx, c, row, window)
	}
}

func indicatorFields(r model.IndicatorRow) map[string]string {
	fields := map[string]string{}
	put := func(k string, v *float64) {
		if v != nil {
			fields[k] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	put("rsi", r.RSI)
	put("macd_line", r.MACDLine)
	put("macd_signal", r.MACDSignal)
	put("macd_hist", r.MACDHist)
	put("boll_upper", r.BollUpper)
	put("boll_middle", r.BollMiddle)
	put("boll_lower", r.BollLower)
	put("sma_20", r.SMA20)
	put("sma_50", r.SMA50)
	put("sma_100", r.SMA100)
	put("sma_200", r.SMA200)
	put("ema_12", r.EMA12)
	put("ema_26", r.EMA26)
	put("ema_50", r.EMA50)
	put("vwap", r.VWAP)
	put("stoch_k", r.StochK)
	put("stoch_d", r.StochD)
	put("atr", r.ATR)
	put("adx", r.ADX)
	put("volume_sma", r.VolumeSMA)
	fields["ts_bucket"] = fmt.Sprintf("%d", r.TSBucket.Unix())
	return fields
}
