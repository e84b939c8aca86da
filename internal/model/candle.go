package model

import (
	"encoding/json"
	"time"
)

// Candle is an OHLCV aggregate over a fixed-period bucket. The same type
// represents both the base timeframe and every rolled-up timeframe; TF
// (seconds) plus (Symbol, Venue, TSBucket) form the primary key.
type Candle struct {
	Symbol     string    `json:"symbol"`
	Venue      string    `json:"venue"`
	TF         int       `json:"tf"`        // timeframe in seconds
	TSBucket   time.Time `json:"ts_bucket"` // floor(first tick ts, TF), UTC
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int       `json:"trade_count"`
	Completed  bool      `json:"completed"`
}

// Key returns "venue:symbol:tf".
func (c *Candle) Key() string {
	return c.Venue + ":" + c.Symbol + ":" + Itoa(c.TF)
}

// StreamKey returns the Redis stream key used for this candle's history.
func (c *Candle) StreamKey() string {
	return "stream:bars:" + c.Symbol + ":" + Itoa(c.TF)
}

// CacheKey returns the sorted-set cache key for this candle's symbol+tf.
func (c *Candle) CacheKey() string {
	return "bars:" + c.Symbol + ":" + Itoa(c.TF)
}

// Valid reports whether the candle satisfies the OHLC invariants. Invalid
// candles are still emitted by the bar builder (spec: "invalid candles are
// logged and counted but still emitted"); this is advisory, not enforced.
func (c *Candle) Valid() bool {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.Volume < 0 {
		return false
	}
	maxOC := c.Open
	if c.Close > maxOC {
		maxOC = c.Close
	}
	minOC := c.Open
	if c.Close < minOC {
		minOC = c.Close
	}
	if c.High < maxOC || c.Low > minOC {
		return false
	}
	return int64(c.TSBucket.Unix())%int64(c.TF) == 0
}

// JSON returns the JSON-encoded candle (errors ignored, hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
