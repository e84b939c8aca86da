package indicator

import (
	"testing"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleAt(o, h, l, c, v float64) model.Candle {
	return model.Candle{Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSMA_BasicAverage(t *testing.T) {
	s := NewSMA(3)
	for _, v := range []float64{1, 2, 3} {
		s.Update(candleAt(v, v, v, v, 1))
	}
	require.True(t, s.Ready())
	assert.InDelta(t, 2.0, s.Value(), 1e-9)

	s.Update(candleAt(4, 4, 4, 4, 1))
	assert.InDelta(t, 3.0, s.Value(), 1e-9, "window should have slid to {2,3,4}")
}

func TestEMA_NotReadyBeforePeriod(t *testing.T) {
	e := NewEMA(5)
	for i := 0; i < 4; i++ {
		e.Update(candleAt(10, 10, 10, 10, 1))
	}
	assert.False(t, e.Ready())
	e.Update(candleAt(10, 10, 10, 10, 1))
	assert.True(t, e.Ready())
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	r := NewRSI(14)
	price := 100.0
	for i := 0; i < 20; i++ {
		price++
		r.Update(candleAt(price, price, price, price, 1))
	}
	require.True(t, r.Ready())
	assert.InDelta(t, 100.0, r.Value(), 1e-6)
}

func TestMACD_ReadyOnlyAfterSignalWarmsUp(t *testing.T) {
	m := NewMACD(3, 6, 3)
	for i := 0; i < 6; i++ {
		m.Update(candleAt(10, 10, 10, 10, 1))
		assert.False(t, m.Result().Ready, "signal EMA needs its own warmup after the MACD line is ready")
	}
	for i := 0; i < 5; i++ {
		m.Update(candleAt(10, 10, 10, 10, 1))
	}
	assert.True(t, m.Result().Ready)
}

func TestBollinger_FlatSeriesHasZeroWidth(t *testing.T) {
	b := NewBollinger(5, 2)
	for i := 0; i < 5; i++ {
		b.Update(candleAt(50, 50, 50, 50, 1))
	}
	r := b.Result()
	require.True(t, r.Ready)
	assert.InDelta(t, 50.0, r.Middle, 1e-9)
	assert.InDelta(t, 50.0, r.Upper, 1e-9)
	assert.InDelta(t, 50.0, r.Lower, 1e-9)
}

func TestVWAP_WeightsByVolume(t *testing.T) {
	v := NewVWAP()
	v.Update(candleAt(10, 10, 10, 10, 100)) // typical 10, vol 100
	v.Update(candleAt(20, 20, 20, 20, 300)) // typical 20, vol 300
	// (10*100 + 20*300) / 400 = 17.5
	assert.InDelta(t, 17.5, v.Value(), 1e-9)
}

func TestStochastic_AtTopOfRangeIsHundred(t *testing.T) {
	s := NewStochastic(5, 1, 1)
	for i := 0; i < 4; i++ {
		s.Update(candleAt(10, 10+float64(i), 10-float64(i), 10, 1))
	}
	s.Update(candleAt(10, 50, 0, 50, 1))
	require.True(t, s.Ready())
	assert.InDelta(t, 100.0, s.Result().K, 1e-6)
}

func TestATR_ConstantRangeConverges(t *testing.T) {
	a := NewATR(5)
	price := 100.0
	for i := 0; i < 20; i++ {
		a.Update(candleAt(price, price+2, price-2, price, 1))
	}
	require.True(t, a.Ready())
	assert.InDelta(t, 4.0, a.Value(), 1e-6, "true range is flat at 4 once the series settles")
}

func TestVolumeSMA_TracksVolumeNotPrice(t *testing.T) {
	vs := NewVolumeSMA(3)
	vs.Update(candleAt(1, 1, 1, 1, 10))
	vs.Update(candleAt(999, 999, 999, 999, 20))
	vs.Update(candleAt(1, 1, 1, 1, 30))
	require.True(t, vs.Ready())
	assert.InDelta(t, 20.0, vs.Value(), 1e-9)
}

func TestADX_RequiresWarmup(t *testing.T) {
	a := NewADX(5)
	for i := 0; i < 10; i++ {
		a.Update(candleAt(100, 105+float64(i), 95, 100+float64(i), 1))
	}
	assert.True(t, a.Ready())
	assert.GreaterOrEqual(t, a.Value(), 0.0)
}
