package indicator

import (
	"math"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// ADX is the Average Directional Index (spec 4.5: "ADX(14) ... Wilder").
// +DM/-DM and true range are Wilder-smoothed into +DI/-DI, combined into
// DX, and DX itself is Wilder-smoothed into ADX.
type ADX struct {
	period int

	plusDM  *SMMA
	minusDM *SMMA
	tr      *SMMA
	dx      *SMMA

	prevHigh, prevLow, prevClose float64
	hasPrev                      bool
}

func NewADX(period int) *ADX {
	return &ADX{
		period:  period,
		plusDM:  NewSMMA(period),
		minusDM: NewSMMA(period),
		tr:      NewSMMA(period),
		dx:      NewSMMA(period),
	}
}

func (a *ADX) Name() string { return "ADX" }

func (a *ADX) Update(candle model.Candle) {
	if !a.hasPrev {
		a.prevHigh, a.prevLow, a.prevClose = candle.High, candle.Low, candle.Close
		a.hasPrev = true
		return
	}

	upMove := candle.High - a.prevHigh
	downMove := a.prevLow - candle.Low

	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	tr := candle.High - candle.Low
	tr = math.Max(tr, math.Abs(candle.High-a.prevClose))
	tr = math.Max(tr, math.Abs(candle.Low-a.prevClose))

	a.plusDM.UpdateValue(plusDM)
	a.minusDM.UpdateValue(minusDM)
	a.tr.UpdateValue(tr)

	if a.plusDM.Ready() && a.minusDM.Ready() && a.tr.Ready() && a.tr.Value() != 0 {
		plusDI := 100 * a.plusDM.Value() / a.tr.Value()
		minusDI := 100 * a.minusDM.Value() / a.tr.Value()
		denom := plusDI + minusDI
		var dx float64
		if denom != 0 {
			dx = 100 * math.Abs(plusDI-minusDI) / denom
		}
		a.dx.UpdateValue(dx)
	}

	a.prevHigh, a.prevLow, a.prevClose = candle.High, candle.Low, candle.Close
}

func (a *ADX) Value() float64 { return a.dx.Value() }
func (a *ADX) Ready() bool    { return a.dx.Ready() }
