package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/clock"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// PolledDuringHours is the pull-based Source for the delayed US-equity REST
// feed (spec 4.2: "refuses to run while the market clock is closed ...
// reopen check every 60s"). Grounded on original_source/collectors/
// {alpaca,polygon}_collector.py's REST-poll loop, gated by an
// internal/clock.Clock instead of the Python pytz-based calendar check.
type PolledDuringHours struct {
	Clock          clock.Clock
	PollInterval   time.Duration // default 15s
	ReopenCheck    time.Duration // default 60s
	Fetch          func(ctx context.Context, symbols []string) ([]model.Tick, error)
	FetchBars      func(ctx context.Context, symbol string, tfSeconds int, from, to time.Time) ([]model.Candle, error)

	symbols []string
	running bool
}

func NewPolledDuringHours(c clock.Clock, fetch func(context.Context, []string) ([]model.Tick, error)) *PolledDuringHours {
	return &PolledDuringHours{Clock: c, PollInterval: 15 * time.Second, ReopenCheck: 60 * time.Second, Fetch: fetch}
}

// Connect is a no-op: the REST feed has no persistent connection to
// establish. Market-hours gating happens in Run so a closed market is
// treated as an idle condition, not a breaker-tripping connect failure.
func (p *PolledDuringHours) Connect(ctx context.Context) error { return nil }

func (p *PolledDuringHours) Subscribe(ctx context.Context, symbols []string) error {
	p.symbols = symbols
	return nil
}

// Run refuses to poll while the market clock is closed (spec: "refuses to
// run while the market clock is closed ... reopen check every 60s"),
// idling and re-checking instead of erroring. While open, it polls Fetch
// every PollInterval.
func (p *PolledDuringHours) Run(ctx context.Context, out Sink) error {
	if !p.Clock.IsOpen(time.Now()) {
		return p.idleUntilOpen(ctx)
	}

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			if !p.Clock.IsOpen(now) {
				return nil // market closed mid-session: end Run, collector idles and reconnects
			}
			ticks, err := p.Fetch(ctx, p.symbols)
			if err != nil {
				return fmt.Errorf("polled-during-hours: fetch: %w", err)
			}
			for _, t := range ticks {
				out.AcceptTick(ctx, t)
			}
		}
	}
}

func (p *PolledDuringHours) idleUntilOpen(ctx context.Context) error {
	ticker := time.NewTicker(p.ReopenCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.Clock.IsOpen(time.Now()) {
				return nil // back to Run's top via the outer collector loop
			}
		}
	}
}

func (p *PolledDuringHours) FetchHistorical(ctx context.Context, symbol string, tfSeconds int, from, to time.Time) ([]model.Candle, error) {
	if p.FetchBars == nil {
		return nil, fmt.Errorf("polled-during-hours: FetchHistorical not configured for %s", symbol)
	}
	return p.FetchBars(ctx, symbol, tfSeconds, from, to)
}

func (p *PolledDuringHours) Disconnect(ctx context.Context) error { return nil }
