// Command collector runs exactly one venue's collector.Collector standalone
// against the configured symbol list and an in-process bus, logging accepted ticks/bars
// instead of feeding the full quality/bar-builder/indicator chain. It
// exists for venue onboarding and connectivity verification — checking
// that a new venue's credentials, symbol list, and wire format are wired
// correctly — without standing up cmd/pipeline's full dependency graph.
//
// cmd/pipeline is where collectors feed production traffic: spec 2's Bus
// is in-process pub/sub, so the collectors that matter for the data plane
// share cmd/pipeline's bus with the Quality Checker and everything
// downstream of it. This binary is deliberately a narrower tool, selected
// with -venue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/config"
	"github.com/mytechsonamy/crypto-stock-platform/internal/bus"
	"github.com/mytechsonamy/crypto-stock-platform/internal/clock"
	"github.com/mytechsonamy/crypto-stock-platform/internal/collector"
	"github.com/mytechsonamy/crypto-stock-platform/internal/logger"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/venue"
)

func main() {
	venueFlag := flag.String("venue", "binance", "venue to run standalone: binance, alpaca, or polygon")
	flag.Parse()

	log := logger.Init("collector", slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.New(256, log)
	go logSink(ctx, b, log)

	symbols := cfg.SymbolsForVenue(*venueFlag)
	if len(symbols) == 0 {
		log.Error("no symbols configured for venue", "venue", *venueFlag)
		os.Exit(1)
	}
	provider := func(ctx context.Context) ([]string, error) { return symbols, nil }

	c, err := buildCollector(*venueFlag, cfg, provider, b, log)
	if err != nil {
		log.Error("failed to build collector", "venue", *venueFlag, "error", err)
		os.Exit(1)
	}

	log.Info("collector starting", "venue", *venueFlag, "symbols", symbols)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("collector exited with error", "error", err)
		os.Exit(1)
	}
}

func buildCollector(venueName string, cfg *config.Config, provider collector.SymbolProvider, b *bus.Bus, log *slog.Logger) (*collector.Collector, error) {
	switch venueName {
	case "binance":
		src := collector.NewStreaming(cfg.BinanceWSURL, cfg.BinanceRESTURL, venue.ParseBinanceMessage)
		return collector.New(collector.Config{Name: "binance_collector", Venue: venueName}, src, provider, collector.NewBusSink(b), b, log), nil
	case "alpaca":
		client := venue.NewAlpacaClient(cfg.AlpacaKeyID, cfg.AlpacaSecretKey)
		src := collector.NewPolledDuringHours(usEquityClock(), client.Fetch)
		src.FetchBars = client.FetchBars
		return collector.New(collector.Config{Name: "alpaca_collector", Venue: venueName}, src, provider, collector.NewBusSink(b), b, log), nil
	case "polygon":
		client := venue.NewPolygonClient(cfg.PolygonAPIKey)
		src := collector.NewPolledRateLimited(cfg.PolygonRequestsMin, client.FetchPreviousClose)
		return collector.New(collector.Config{Name: "polygon_collector", Venue: venueName}, src, provider, collector.NewBusSink(b), b, log), nil
	default:
		return nil, errUnknownVenue(venueName)
	}
}

type errUnknownVenue string

func (e errUnknownVenue) Error() string { return "unknown venue: " + string(e) }

func usEquityClock() clock.Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return clock.RegularHours{Location: loc, OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0}
}

// logSink drains the bus and logs every tick/bar, standing in for the
// quality/bar-builder chain this standalone binary doesn't run.
func logSink(ctx context.Context, b *bus.Bus, log *slog.Logger) {
	ch := b.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case model.TickMsg:
				log.Info("tick", "venue", m.Tick.Venue, "symbol", m.Tick.Symbol, "price", m.Tick.Price)
			case model.BarCompletedMsg:
				log.Info("bar", "venue", m.Candle.Venue, "symbol", m.Candle.Symbol, "tf", m.Candle.TF, "close", m.Candle.Close)
			case model.HealthReport:
				log.Info("health", "component", m.Component, "connected", m.Connected, "cb_state", m.CBState)
			}
		}
	}
}
