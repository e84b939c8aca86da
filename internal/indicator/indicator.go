// Package indicator provides the Indicator Engine (spec 4.5): on every
// bars:completed event it loads the most recent N=200 candles for
// (symbol, timeframe) and recomputes the full fixed indicator set over that
// window, producing one model.IndicatorRow per bar completion.
//
// Single-output indicators (RSI, SMA, EMA, VWAP, ATR, ADX, VolumeSMA) share
// the Indicator interface below and are fed the window candle-by-candle;
// multi-output indicators (MACD, Bollinger Bands, Stochastic) are fed the
// same way through Update and expose a Result() method returning a small
// struct. Grounded on the
// teacher's internal/indicator/{ema,rsi,sma,smma}.go kernels, generalized
// from persistent O(1)-per-tick state (teacher fed a continuous 1s stream)
// to a fresh instance fed the whole window on every bar close, matching
// the spec's "recompute ... over the full window" contract rather than
// the teacher's streaming-preview one.
package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// Indicator is the interface for single-output technical indicators.
type Indicator interface {
	Name() string
	Update(candle model.Candle)
	Value() float64
	Ready() bool
}
