package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// SMMA calculates the Smoothed Moving Average (Wilder-style): the first
// value is a plain SMA(period), then SMMA = (prev*(period-1) + price) /
// period. Used as a building block for ATR and ADX.
type SMMA struct {
	period  int
	count   int
	sum     float64
	current float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{period: period}
}

func (s *SMMA) Name() string { return "SMMA" }

func (s *SMMA) Update(candle model.Candle) {
	s.UpdateValue(candle.Close)
}

// UpdateValue feeds a raw value (not necessarily a close price — ATR feeds
// true range, ADX feeds directional movement) through the same smoothing.
func (s *SMMA) UpdateValue(v float64) {
	s.count++
	if s.count <= s.period {
		s.sum += v
		if s.count == s.period {
			s.current = s.sum / float64(s.period)
		}
		return
	}
	s.current = (s.current*float64(s.period-1) + v) / float64(s.period)
}

func (s *SMMA) Value() float64 { return s.current }
func (s *SMMA) Ready() bool    { return s.count >= s.period }
