package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/collector"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// PolygonClient fetches the previous day's aggregate bar per symbol — the
// FetchPreviousClose hook for internal/collector.PolledRateLimited (spec
// 4.2: "polled EOD equity feed ... publishes the previous close as a daily
// bar", 5 req/min free tier). Grounded on
// original_source/collectors/polygon_collector.py's "/v2/aggs/ticker/{sym}/
// prev" endpoint and its 429 handling.
type PolygonClient struct {
	BaseURL    string // default "https://api.polygon.io"
	APIKey     string
	HTTPClient *http.Client
}

func NewPolygonClient(apiKey string) *PolygonClient {
	return &PolygonClient{
		BaseURL:    "https://api.polygon.io",
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type polygonPrevResponse struct {
	Results []struct {
		Ticker string  `json:"T"`
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		Trades int     `json:"n"`
		TimeMs int64   `json:"t"`
	} `json:"results"`
}

// FetchPreviousClose issues one request per symbol (Polygon's /prev endpoint
// is single-ticker), honoring the 5 req/min ceiling via
// PolledRateLimited's own sliding window — this just reports 429s back so
// the caller's backoff can engage (spec: "on 429, apply exponential backoff
// capped at 5 min").
func (p *PolygonClient) FetchPreviousClose(ctx context.Context, symbols []string) ([]model.Candle, error) {
	bars := make([]model.Candle, 0, len(symbols))
	for _, symbol := range symbols {
		bar, err := p.fetchOne(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if bar != nil {
			bars = append(bars, *bar)
		}
	}
	return bars, nil
}

func (p *PolygonClient) fetchOne(ctx context.Context, symbol string) (*model.Candle, error) {
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s", p.BaseURL, symbol, p.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("polygon: build request: %w", err)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polygon: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, collector.NewRateLimitedError(fmt.Sprintf("polygon: 429 for %s", symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polygon: unexpected status %d for %s", resp.StatusCode, symbol)
	}

	var parsed polygonPrevResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("polygon: decode: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, nil
	}
	r := parsed.Results[0]
	return &model.Candle{
		Symbol:     symbol,
		Venue:      "polygon",
		TF:         86400,
		TSBucket:   time.UnixMilli(r.TimeMs).UTC(),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
		TradeCount: r.Trades,
		Completed:  true,
	}, nil
}
