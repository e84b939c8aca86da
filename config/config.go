// Package config loads the platform's configuration from environment
// variables (optionally via a .env file in development), validates it,
// and exposes the per-component settings cmd/collector, cmd/pipeline, and
// cmd/gateway need to wire their dependency graphs.
//
// Grounded on adred-codev-ws_poc/ws/config.go's env.Parse + godotenv +
// Validate() shape, generalized from one flat struct to the multi-venue,
// multi-store settings this platform needs.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting used across the three
// binaries. Not every binary uses every field; each cmd/ reads only the
// sections it needs.
type Config struct {
	// Infrastructure
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/platform.db"`
	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9090"`

	// HTTP/WS gateway
	GatewayAddr    string   `env:"GATEWAY_ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	JWTSecret      string   `env:"JWT_SECRET,required"`

	// Rate limiting (spec 6: distributed token bucket + local pre-filter)
	RateLimitCapacity float64 `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RateLimitRate     float64 `env:"RATE_LIMIT_REFILL_PER_SEC" envDefault:"1"`
	LocalLimitPerSec  float64 `env:"LOCAL_LIMIT_PER_SEC" envDefault:"10"`
	LocalLimitBurst   int     `env:"LOCAL_LIMIT_BURST" envDefault:"20"`

	// Venue credentials
	BinanceWSURL       string `env:"BINANCE_WS_URL" envDefault:"wss://stream.binance.com:9443/stream"`
	BinanceRESTURL     string `env:"BINANCE_REST_URL" envDefault:"https://api.binance.com"`
	AlpacaKeyID        string `env:"ALPACA_KEY_ID"`
	AlpacaSecretKey    string `env:"ALPACA_SECRET_KEY"`
	PolygonAPIKey      string `env:"POLYGON_API_KEY"`
	PolygonRequestsMin int    `env:"POLYGON_REQUESTS_PER_MIN" envDefault:"5"`

	// Symbols (comma-separated, venue-qualified, e.g. "binance:BTCUSDT,alpaca:AAPL")
	Symbols string `env:"SYMBOLS" envDefault:"binance:BTCUSDT,binance:ETHUSDT"`

	// Dynamic timeframes the bar builder rolls up into (seconds)
	EnabledTFs string `env:"ENABLED_TFS" envDefault:"60,300,900,3600"`

	// Notification channels (spec 4.6)
	SMTPAddr     string `env:"SMTP_ADDR" envDefault:""`
	WebhookURL   string `env:"ALERT_WEBHOOK_URL" envDefault:""`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) then environment variables into a Config,
// applying defaults and validating required fields.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants env.Parse's struct tags can't express.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitCapacity <= 0 {
		return fmt.Errorf("RATE_LIMIT_CAPACITY must be > 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}

// ParseTFs parses EnabledTFs into a slice of second-denominated timeframes,
// skipping and logging any malformed entry rather than failing startup.
func (c *Config) ParseTFs() []int {
	parts := strings.Split(c.EnabledTFs, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			slog.Warn("config: skipping invalid timeframe", "value", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// VenueSymbol is one entry of the parsed Symbols list.
type VenueSymbol struct {
	Venue  string
	Symbol string
}

// ParseSymbols parses the "venue:symbol,venue:symbol" Symbols string.
func (c *Config) ParseSymbols() []VenueSymbol {
	parts := strings.Split(c.Symbols, ",")
	out := make([]VenueSymbol, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		vs := strings.SplitN(p, ":", 2)
		if len(vs) != 2 {
			slog.Warn("config: skipping malformed symbol entry", "value", p)
			continue
		}
		out = append(out, VenueSymbol{Venue: vs[0], Symbol: vs[1]})
	}
	return out
}

// SymbolsForVenue filters ParseSymbols down to one venue's bare symbols.
func (c *Config) SymbolsForVenue(venue string) []string {
	var out []string
	for _, vs := range c.ParseSymbols() {
		if vs.Venue == venue {
			out = append(out, vs.Symbol)
		}
	}
	return out
}
