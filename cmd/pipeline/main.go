// Command pipeline runs the full ingest-to-alert data plane: venue
// collectors feeding a shared in-process bus, the Quality Checker, Bar
// Builder, Indicator Engine, Feature Engineer, and Alert Engine, with a
// Redis bridge handing chart updates and alerts, and a health.Recorder
// writing health reports to the cache, for the separate cmd/gateway process.
//
// Collectors, Quality Checker, Bar Builder, Indicator Engine, Feature
// Engineer, and Alert Engine all share one internal/bus.Bus instance
// because spec 2's Bus is explicitly in-process pub/sub, "backed by Redis
// pub/sub for cross-process fan-out" only at the gateway boundary — so
// unlike cmd/collector and cmd/gateway, this binary cannot be split
// further without inventing a transport the spec doesn't name.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/config"
	"github.com/mytechsonamy/crypto-stock-platform/internal/alert"
	"github.com/mytechsonamy/crypto-stock-platform/internal/barbuilder"
	"github.com/mytechsonamy/crypto-stock-platform/internal/breaker"
	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/catalog"
	"github.com/mytechsonamy/crypto-stock-platform/internal/clock"
	"github.com/mytechsonamy/crypto-stock-platform/internal/collector"
	"github.com/mytechsonamy/crypto-stock-platform/internal/feature"
	"github.com/mytechsonamy/crypto-stock-platform/internal/health"
	"github.com/mytechsonamy/crypto-stock-platform/internal/indicator"
	"github.com/mytechsonamy/crypto-stock-platform/internal/logger"
	"github.com/mytechsonamy/crypto-stock-platform/internal/metrics"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/notify"
	"github.com/mytechsonamy/crypto-stock-platform/internal/quality"
	redisstore "github.com/mytechsonamy/crypto-stock-platform/internal/store/redis"
	sqlitestore "github.com/mytechsonamy/crypto-stock-platform/internal/store/sqlite"
	"github.com/mytechsonamy/crypto-stock-platform/internal/venue"
)

func main() {
	log := logger.Init("pipeline", slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		log.Error("sqlite open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	cat := catalog.New(db)
	if err := cat.Refresh(ctx); err != nil {
		log.Warn("catalog refresh failed, starting empty", "error", err)
	}
	seedCatalog(ctx, cat, cfg, log)

	b := bus.New(1024, log)

	qualChecker := quality.New(quality.Config{}, db, log, time.Now().UnixNano())
	builder := barbuilder.New(barbuilder.Config{RollupTFs: extraTFs(cfg.ParseTFs())}, db, db, b, log)
	sink := qualitySink{checker: qualChecker, builder: builder}

	engineer := feature.NewEngineer(db, cache, log)
	dispatcher := notify.NewRouter(
		notify.NewWSChannel(cache),
		notify.NewEmailChannel(log),
		notify.NewWebhookChannel(),
		notify.NewSlackChannel(),
		log,
	)
	alertEngine := alert.New(db, cache, dispatcher, log)

	windowLoad := windowLoader(builder, db)
	handoff := func(ctx context.Context, candle model.Candle, row model.IndicatorRow, window []model.Candle) {
		engineer.Handoff(ctx, candle, row, window)
		alertEngine.Evaluate(ctx, candle.Symbol, candle.Close, row)
	}
	indEngine := indicator.New(indicator.Config{}, windowLoad, db, cache, b, handoff, log)
	go indEngine.Run(ctx)

	recorder := health.NewRecorder(cache, log)
	go recorder.Run(ctx, b.SubscribeChannels("system:health"))

	bridge := bus.NewBridge(cache, log)
	go bridge.Forward(ctx, b, "chart_updates")
	go bridge.ForwardMatch(ctx, b, func(channel string) bool {
		return len(channel) > 7 && channel[:7] == "alerts:"
	})

	mtr := metrics.New()
	go mtr.Watch(ctx, b)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, log)
	metricsSrv.Start()
	defer metricsSrv.Stop(context.Background())

	for _, c := range buildCollectors(cfg, cat, sink, b, log) {
		go runCollector(ctx, c, log)
	}

	log.Info("pipeline started")
	<-ctx.Done()
	log.Info("pipeline shutting down")
	builder.Flush(context.Background())
}

// qualitySink adapts the Quality Checker and Bar Builder into a single
// collector.Sink: ticks pass through quality gating before reaching the
// builder, exchange-delivered bars go straight through (spec 4.2 step 4).
type qualitySink struct {
	checker *quality.Checker
	builder *barbuilder.Builder
}

func (s qualitySink) AcceptTick(ctx context.Context, t model.Tick) {
	if ok, _ := s.checker.Check(ctx, t); ok {
		s.builder.AcceptTick(ctx, t)
	}
}

func (s qualitySink) AcceptBar(ctx context.Context, c model.Candle) {
	s.builder.AcceptBar(ctx, c)
}

// windowLoader prefers the bar builder's in-memory ring, falling back to
// the durable candle store (spec 4.5: "cache if present, else storage").
func windowLoader(builder *barbuilder.Builder, store model.CandleStore) indicator.WindowLoader {
	return func(ctx context.Context, symbol, venueName string, tf int) ([]model.Candle, error) {
		if r := builder.Ring(venueName, symbol, tf); r != nil && r.Len() > 0 {
			snap := r.Snapshot()
			if len(snap) > indicator.WindowSize {
				snap = snap[len(snap)-indicator.WindowSize:]
			}
			return snap, nil
		}
		return store.RecentCandles(ctx, symbol, tf, indicator.WindowSize)
	}
}

func extraTFs(all []int) []int {
	if len(all) <= 1 {
		return nil
	}
	return all[1:]
}

func seedCatalog(ctx context.Context, cat *catalog.Catalog, cfg *config.Config, log *slog.Logger) {
	for _, vs := range cfg.ParseSymbols() {
		assetClass := "us_equity"
		if vs.Venue == "binance" {
			assetClass = "crypto"
		}
		s := model.Symbol{AssetClass: assetClass, Name: vs.Symbol, Venue: vs.Venue, IsActive: true, DisplayName: vs.Symbol}
		if err := cat.Upsert(ctx, s); err != nil {
			log.Warn("catalog seed upsert failed", "symbol", s.Key(), "error", err)
		}
	}
}

// buildCollectors wires one collector.Collector per configured venue,
// grounded on spec 4.2's literal venue-to-Source mapping.
func buildCollectors(cfg *config.Config, cat *catalog.Catalog, sink collector.Sink, b *bus.Bus, log *slog.Logger) []*collector.Collector {
	var out []*collector.Collector

	if syms := cfg.SymbolsForVenue("binance"); len(syms) > 0 {
		src := collector.NewStreaming(cfg.BinanceWSURL, cfg.BinanceRESTURL, venue.ParseBinanceMessage)
		out = append(out, collector.New(
			collector.Config{Name: "binance_collector", Venue: "binance"},
			src,
			catalogSymbolProvider(cat, "binance"),
			sink, b, log,
		))
	}

	if syms := cfg.SymbolsForVenue("alpaca"); len(syms) > 0 {
		alpacaClient := venue.NewAlpacaClient(cfg.AlpacaKeyID, cfg.AlpacaSecretKey)
		src := collector.NewPolledDuringHours(usEquityClock(), alpacaClient.Fetch)
		src.FetchBars = alpacaClient.FetchBars
		out = append(out, collector.New(
			collector.Config{Name: "alpaca_collector", Venue: "alpaca"},
			src,
			catalogSymbolProvider(cat, "alpaca"),
			sink, b, log,
		))
	}

	if syms := cfg.SymbolsForVenue("polygon"); len(syms) > 0 {
		polygonClient := venue.NewPolygonClient(cfg.PolygonAPIKey)
		src := collector.NewPolledRateLimited(cfg.PolygonRequestsMin, polygonClient.FetchPreviousClose)
		out = append(out, collector.New(
			collector.Config{Name: "polygon_collector", Venue: "polygon"},
			src,
			catalogSymbolProvider(cat, "polygon"),
			sink, b, log,
		))
	}

	return out
}

func catalogSymbolProvider(cat *catalog.Catalog, venueName string) collector.SymbolProvider {
	return func(ctx context.Context) ([]string, error) {
		var syms []string
		for _, s := range cat.Active() {
			if s.Venue == venueName {
				syms = append(syms, s.Name)
			}
		}
		return syms, nil
	}
}

// usEquityClock matches Nasdaq/NYSE regular hours (09:30-16:00 America/New_York).
func usEquityClock() clock.Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return clock.RegularHours{
		Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0,
	}
}

func runCollector(ctx context.Context, c *collector.Collector, log *slog.Logger) {
	for {
		if err := c.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("collector run exited, restarting", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		} else {
			return
		}
	}
}
