package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// MACDResult is the three-line output of the MACD indicator (spec 4.5:
// "MACD(12,26,9): EMA12 - EMA26; signal = EMA9 of MACD; hist = MACD - signal").
type MACDResult struct {
	Line, Signal, Hist float64
	Ready              bool
}

// MACD computes the MACD line, signal line, and histogram.
type MACD struct {
	fast, slow, signalPeriod int
	emaFast, emaSlow         *EMA
	emaSignal                *EMA
	count                    int
}

func NewMACD(fast, slow, signalPeriod int) *MACD {
	return &MACD{
		fast: fast, slow: slow, signalPeriod: signalPeriod,
		emaFast:   NewEMA(fast),
		emaSlow:   NewEMA(slow),
		emaSignal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Update(candle model.Candle) {
	m.emaFast.Update(candle)
	m.emaSlow.Update(candle)
	m.count++
	if m.emaFast.Ready() && m.emaSlow.Ready() {
		macd := m.emaFast.Value() - m.emaSlow.Value()
		m.emaSignal.Update(model.Candle{Close: macd})
	}
}

func (m *MACD) Result() MACDResult {
	if !m.emaFast.Ready() || !m.emaSlow.Ready() {
		return MACDResult{}
	}
	line := m.emaFast.Value() - m.emaSlow.Value()
	if !m.emaSignal.Ready() {
		return MACDResult{Line: line}
	}
	signal := m.emaSignal.Value()
	return MACDResult{Line: line, Signal: signal, Hist: line - signal, Ready: true}
}
