package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// VWAP computes the cumulative volume-weighted average price over the
// current window (spec 4.5: "window-local, not session-anchored").
type VWAP struct {
	cumPV  float64 // sum(typical price * volume)
	cumVol float64
	count  int
}

func NewVWAP() *VWAP { return &VWAP{} }

func (v *VWAP) Name() string { return "VWAP" }

func (v *VWAP) Update(candle model.Candle) {
	typical := (candle.High + candle.Low + candle.Close) / 3.0
	v.cumPV += typical * candle.Volume
	v.cumVol += candle.Volume
	v.count++
}

func (v *VWAP) Value() float64 {
	if v.cumVol == 0 {
		return 0
	}
	return v.cumPV / v.cumVol
}

func (v *VWAP) Ready() bool { return v.count > 0 }
