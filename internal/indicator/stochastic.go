package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// StochasticResult is the slow-stochastic output (spec 4.5: "Stochastic
// (14,3,3) %K and %D").
type StochasticResult struct {
	K, D  float64
	Ready bool
}

// Stochastic computes the slow stochastic oscillator: raw %K over
// kPeriod, smoothed into %K by a kSmoothing-period SMA, and %D as a
// further dPeriod-period SMA of %K.
type Stochastic struct {
	kPeriod int

	highBuf, lowBuf []float64
	idx, count      int

	slowK *SMA
	dLine *SMA
}

func NewStochastic(kPeriod, kSmoothing, dPeriod int) *Stochastic {
	return &Stochastic{
		kPeriod: kPeriod,
		highBuf: make([]float64, kPeriod),
		lowBuf:  make([]float64, kPeriod),
		slowK:   NewSMA(kSmoothing),
		dLine:   NewSMA(dPeriod),
	}
}

func (s *Stochastic) Name() string { return "Stochastic" }

func (s *Stochastic) Update(candle model.Candle) {
	s.highBuf[s.idx] = candle.High
	s.lowBuf[s.idx] = candle.Low
	s.idx = (s.idx + 1) % s.kPeriod
	s.count++

	if s.count < s.kPeriod {
		return
	}

	highest, lowest := s.highBuf[0], s.lowBuf[0]
	for i := 1; i < s.kPeriod; i++ {
		if s.highBuf[i] > highest {
			highest = s.highBuf[i]
		}
		if s.lowBuf[i] < lowest {
			lowest = s.lowBuf[i]
		}
	}

	var rawK float64
	if highest != lowest {
		rawK = 100 * (candle.Close - lowest) / (highest - lowest)
	}

	s.slowK.UpdateValue(rawK)
	if s.slowK.Ready() {
		s.dLine.UpdateValue(s.slowK.Value())
	}
}

func (s *Stochastic) Ready() bool { return s.slowK.Ready() && s.dLine.Ready() }

func (s *Stochastic) Result() StochasticResult {
	if !s.Ready() {
		return StochasticResult{}
	}
	return StochasticResult{K: s.slowK.Value(), D: s.dLine.Value(), Ready: true}
}
