package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// AlpacaClient fetches the latest trade per symbol from Alpaca's market-data
// REST API — the delayed US-equity Fetch hook for
// internal/collector.PolledDuringHours (spec 4.2: "delayed US-equity REST
// feed"). Grounded on original_source/collectors/alpaca_collector.py's
// polling loop, re-expressed over the Go stdlib http.Client instead of the
// vendored Alpaca Python SDK, since the SDK has no portable raw wire format
// to port: this targets Alpaca's public "latest trades" REST shape directly.
type AlpacaClient struct {
	BaseURL    string // default "https://data.alpaca.markets"
	KeyID      string
	SecretKey  string
	HTTPClient *http.Client
}

func NewAlpacaClient(keyID, secretKey string) *AlpacaClient {
	return &AlpacaClient{
		BaseURL:    "https://data.alpaca.markets",
		KeyID:      keyID,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type alpacaLatestTradesResponse struct {
	Trades map[string]struct {
		Timestamp string  `json:"t"`
		Price     float64 `json:"p"`
		Size      float64 `json:"s"`
	} `json:"trades"`
}

// Fetch implements PolledDuringHours.Fetch: one batched request for every
// symbol's latest trade.
func (a *AlpacaClient) Fetch(ctx context.Context, symbols []string) ([]model.Tick, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	url := fmt.Sprintf("%s/v2/stocks/trades/latest?symbols=%s", a.BaseURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("alpaca: build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.SecretKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca: unexpected status %d", resp.StatusCode)
	}

	var parsed alpacaLatestTradesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("alpaca: decode: %w", err)
	}

	ticks := make([]model.Tick, 0, len(parsed.Trades))
	for symbol, t := range parsed.Trades {
		ts, err := time.Parse(time.RFC3339Nano, t.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		ticks = append(ticks, model.Tick{
			Venue:    "alpaca",
			Symbol:   symbol,
			Price:    t.Price,
			Quantity: t.Size,
			TS:       ts.UTC(),
		})
	}
	return ticks, nil
}

// FetchBars implements PolledDuringHours.FetchBars (historical backfill)
// against Alpaca's bars endpoint.
func (a *AlpacaClient) FetchBars(ctx context.Context, symbol string, tfSeconds int, from, to time.Time) ([]model.Candle, error) {
	timeframe := alpacaTimeframe(tfSeconds)
	url := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=%s&start=%s&end=%s",
		a.BaseURL, symbol, timeframe, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("alpaca: build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.SecretKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca: unexpected status %d", resp.StatusCode)
	}

	var parsed struct {
		Bars []struct {
			Timestamp string  `json:"t"`
			Open      float64 `json:"o"`
			High      float64 `json:"h"`
			Low       float64 `json:"l"`
			Close     float64 `json:"c"`
			Volume    float64 `json:"v"`
			Trades    int     `json:"n"`
		} `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("alpaca: decode bars: %w", err)
	}

	bars := make([]model.Candle, 0, len(parsed.Bars))
	for _, b := range parsed.Bars {
		ts, _ := time.Parse(time.RFC3339Nano, b.Timestamp)
		bars = append(bars, model.Candle{
			Symbol:     symbol,
			Venue:      "alpaca",
			TF:         tfSeconds,
			TSBucket:   ts.UTC(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.Trades,
			Completed:  true,
		})
	}
	return bars, nil
}

func alpacaTimeframe(tfSeconds int) string {
	switch {
	case tfSeconds <= 60:
		return "1Min"
	case tfSeconds <= 300:
		return "5Min"
	case tfSeconds <= 900:
		return "15Min"
	case tfSeconds <= 3600:
		return "1Hour"
	default:
		return "1Day"
	}
}
