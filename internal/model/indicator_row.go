package model

import (
	"encoding/json"
	"time"
)

// IndicatorRow is the sparse-column indicator set computed for a single
// (Symbol, TF, TSBucket). A nil pointer means "insufficient history," not
// zero.
type IndicatorRow struct {
	Symbol   string    `json:"symbol"`
	TF       int       `json:"tf"`
	TSBucket time.Time `json:"ts_bucket"`

	RSI *float64 `json:"rsi,omitempty"`

	MACDLine   *float64 `json:"macd_line,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_hist,omitempty"`

	BollUpper  *float64 `json:"boll_upper,omitempty"`
	BollMiddle *float64 `json:"boll_middle,omitempty"`
	BollLower  *float64 `json:"boll_lower,omitempty"`

	SMA20  *float64 `json:"sma_20,omitempty"`
	SMA50  *float64 `json:"sma_50,omitempty"`
	SMA100 *float64 `json:"sma_100,omitempty"`
	SMA200 *float64 `json:"sma_200,omitempty"`

	EMA12 *float64 `json:"ema_12,omitempty"`
	EMA26 *float64 `json:"ema_26,omitempty"`
	EMA50 *float64 `json:"ema_50,omitempty"`

	VWAP *float64 `json:"vwap,omitempty"`

	StochK *float64 `json:"stoch_k,omitempty"`
	StochD *float64 `json:"stoch_d,omitempty"`

	ATR *float64 `json:"atr,omitempty"`
	ADX *float64 `json:"adx,omitempty"`

	VolumeSMA *float64 `json:"volume_sma,omitempty"`
}

// Key returns "symbol:tf".
func (r *IndicatorRow) Key() string {
	return r.Symbol + ":" + Itoa(r.TF)
}

// CacheKey returns the Redis hash cache key for this row's symbol+tf.
func (r *IndicatorRow) CacheKey() string {
	return "indicators:" + r.Symbol + ":" + Itoa(r.TF)
}

// JSON returns the JSON-encoded indicator row.
func (r *IndicatorRow) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// F returns a *float64 pointer to v, for populating IndicatorRow fields.
func F(v float64) *float64 {
	return &v
}
