package indicator

import "github.com/mytechsonamy/crypto-stock-platform/internal/model"

// VolumeSMA is the Simple Moving Average of candle volume (spec 4.5:
// "Volume-SMA(20)"), reusing SMA's rolling-window math over Volume instead
// of Close.
type VolumeSMA struct {
	sma *SMA
}

func NewVolumeSMA(period int) *VolumeSMA {
	return &VolumeSMA{sma: NewSMA(period)}
}

func (v *VolumeSMA) Name() string { return "VolumeSMA" }

func (v *VolumeSMA) Update(candle model.Candle) {
	v.sma.UpdateValue(candle.Volume)
}

func (v *VolumeSMA) Value() float64 { return v.sma.Value() }
func (v *VolumeSMA) Ready() bool    { return v.sma.Ready() }
