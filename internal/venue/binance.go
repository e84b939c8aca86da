// Package venue holds the three venue-specific wire adapters spec 4.2
// names: a crypto streaming exchange, a delayed US-equity REST feed
// polled during market hours, and a rate-limited EOD-equity REST feed.
// Each adapter is a pure parse/fetch function handed to the matching
// internal/collector.Source constructor — venue knowledge never leaks
// into the shared run-loop.
package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// binanceEvent covers both combined-stream trade and kline payloads
// (original_source/collectors/binance_collector.py's _handle_trade/
// _handle_kline: top-level "e" discriminates "trade" vs "kline").
type binanceEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		TradeTime int64  `json:"T"`
		Kline     *struct {
			OpenTime  int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			Trades    int64  `json:"n"`
			IsClosed  bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// ParseBinanceMessage decodes one combined-stream frame into a Tick (trade
// events) or a completed Candle (closed kline events) — the Streaming
// Source's parseMessage hook (spec 4.2: "multiplexed trade + kline
// streams").
func ParseBinanceMessage(raw []byte) (*model.Tick, *model.Candle, error) {
	var msg binanceEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, fmt.Errorf("binance: decode: %w", err)
	}

	switch msg.Data.EventType {
	case "trade":
		price, err := parseFloat(msg.Data.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("binance: trade price: %w", err)
		}
		qty, err := parseFloat(msg.Data.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("binance: trade quantity: %w", err)
		}
		tick := model.Tick{
			Venue:    "binance",
			Symbol:   msg.Data.Symbol,
			Price:    price,
			Quantity: qty,
			TS:       time.UnixMilli(msg.Data.TradeTime).UTC(),
		}
		return &tick, nil, nil

	case "kline":
		k := msg.Data.Kline
		if k == nil || !k.IsClosed {
			return nil, nil, nil // only completed klines become bars
		}
		open, _ := parseFloat(k.Open)
		high, _ := parseFloat(k.High)
		low, _ := parseFloat(k.Low)
		closePrice, _ := parseFloat(k.Close)
		volume, _ := parseFloat(k.Volume)
		candle := model.Candle{
			Symbol:     msg.Data.Symbol,
			Venue:      "binance",
			TSBucket:   time.UnixMilli(k.OpenTime).UTC(),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			TradeCount: int(k.Trades),
			Completed:  true,
		}
		return nil, &candle, nil

	default:
		return nil, nil, nil // unrecognized frame (e.g. SUBSCRIBE ack); drop
	}
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
