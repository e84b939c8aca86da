package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// PolledRateLimited is the pull-based Source for the polled EOD equity feed
// (spec 4.2: "fixed token rate ... enforces a local sliding window; on 429,
// apply exponential backoff capped at 5 min; publishes the previous close
// as a daily bar"). Grounded on original_source/collectors/
// yahoo_collector.py's polling_interval + rate_limit + backoff fields.
type PolledRateLimited struct {
	PollInterval     time.Duration // default 300s (5 min)
	RequestsPerMin   int           // default 5
	RateLimitBackoff Backoff       // applied only on 429

	FetchPreviousClose func(ctx context.Context, symbols []string) ([]model.Candle, error)

	symbols      []string
	window       []time.Time // sliding window of request timestamps
	rateLimited  bool
}

func NewPolledRateLimited(requestsPerMin int, fetch func(context.Context, []string) ([]model.Candle, error)) *PolledRateLimited {
	return &PolledRateLimited{
		PollInterval:       5 * time.Minute,
		RequestsPerMin:     requestsPerMin,
		RateLimitBackoff:   Backoff{Initial: 10 * time.Second, Multiplier: 2, Max: 5 * time.Minute},
		FetchPreviousClose: fetch,
	}
}

func (p *PolledRateLimited) Connect(ctx context.Context) error { return nil }

func (p *PolledRateLimited) Subscribe(ctx context.Context, symbols []string) error {
	p.symbols = symbols
	return nil
}

func (p *PolledRateLimited) Run(ctx context.Context, out Sink) error {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !p.allow(time.Now()) {
				continue // local sliding window exhausted, skip this tick
			}
			bars, err := p.FetchPreviousClose(ctx, p.symbols)
			if err != nil {
				if isRateLimited(err) {
					p.rateLimited = true
					d := p.RateLimitBackoff.Next()
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(d):
					}
					continue
				}
				return fmt.Errorf("polled-rate-limited: fetch: %w", err)
			}
			p.rateLimited = false
			p.RateLimitBackoff.Reset()
			for _, bar := range bars {
				bar.Completed = true
				out.AcceptBar(ctx, bar)
			}
		}
	}
}

// allow enforces the local sliding window of RequestsPerMin, trimming
// entries older than one minute before checking capacity.
func (p *PolledRateLimited) allow(now time.Time) bool {
	cutoff := now.Add(-time.Minute)
	kept := p.window[:0]
	for _, t := range p.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.window = kept
	if len(p.window) >= p.RequestsPerMin {
		return false
	}
	p.window = append(p.window, now)
	return true
}

func (p *PolledRateLimited) FetchHistorical(ctx context.Context, symbol string, tfSeconds int, from, to time.Time) ([]model.Candle, error) {
	return nil, fmt.Errorf("polled-rate-limited: FetchHistorical not supported for %s (EOD feed exposes previous close only)", symbol)
}

func (p *PolledRateLimited) Disconnect(ctx context.Context) error { return nil }

// rateLimitedError is returned by a FetchPreviousClose implementation to
// signal an HTTP 429 without the collector package depending on net/http.
type rateLimitedError struct{ msg string }

func (e *rateLimitedError) Error() string { return e.msg }

func NewRateLimitedError(msg string) error { return &rateLimitedError{msg: msg} }

func isRateLimited(err error) bool {
	_, ok := err.(*rateLimitedError)
	return ok
}
