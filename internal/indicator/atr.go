package indicator

import (
	"math"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// ATR is the Average True Range (spec 4.5: "ATR(14) ... Wilder"). True
// range is max(high-low, |high-prevClose|, |low-prevClose|), smoothed with
// Wilder's SMMA.
type ATR struct {
	period    int
	smma      *SMMA
	prevClose float64
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period, smma: NewSMMA(period)}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(candle model.Candle) {
	tr := candle.High - candle.Low
	if a.hasPrev {
		tr = math.Max(tr, math.Abs(candle.High-a.prevClose))
		tr = math.Max(tr, math.Abs(candle.Low-a.prevClose))
	}
	a.smma.UpdateValue(tr)
	a.prevClose = candle.Close
	a.hasPrev = true
}

func (a *ATR) Value() float64 { return a.smma.Value() }
func (a *ATR) Ready() bool    { return a.smma.Ready() }
