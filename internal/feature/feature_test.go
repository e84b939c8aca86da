package feature

import (
	"testing"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rising(n int, start float64) []model.Candle {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) // a Monday
	window := make([]model.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += 1
		window[i] = model.Candle{
			Symbol:   "BTC-USD",
			TF:       60,
			TSBucket: base.Add(time.Duration(i) * time.Minute),
			Open:     price - 1,
			High:     price + 0.5,
			Low:      price - 1.5,
			Close:    price,
			Volume:   100 + float64(i%7),
		}
	}
	return window
}

func TestCompute_EmptyWindowReturnsZeroRow(t *testing.T) {
	row := Compute("BTC-USD", 60, nil, model.IndicatorRow{})
	assert.Equal(t, model.FeatureVersion, row.FeatureVersion)
	assert.Equal(t, "BTC-USD", row.Symbol)
}

func TestCompute_ReturnsPositiveOnRisingMarket(t *testing.T) {
	window := rising(30, 100)
	row := Compute("BTC-USD", 60, window, model.IndicatorRow{})
	assert.Greater(t, row.Returns.Return1, 0.0)
	assert.Greater(t, row.Returns.Return5, 0.0)
}

func TestCompute_CalendarFieldsFromTSBucket(t *testing.T) {
	window := rising(5, 100)
	row := Compute("BTC-USD", 60, window, model.IndicatorRow{})
	last := window[len(window)-1].TSBucket
	assert.Equal(t, float64(last.UTC().Hour()), row.Calendar.Hour)
	assert.Equal(t, 0.0, row.Calendar.IsWeekend, "base timestamp is a Monday")
}

func TestCompute_RSIZoneFlagsAreExclusive(t *testing.T) {
	window := rising(5, 100)
	rsi := 25.0
	row := Compute("BTC-USD", 60, window, model.IndicatorRow{RSI: &rsi})
	assert.Equal(t, 1.0, row.Technical.RSIOversold)
	assert.Equal(t, 0.0, row.Technical.RSINeutral)
	assert.Equal(t, 0.0, row.Technical.RSIOverbought)
}

func TestCompute_TrendFeaturesUseIndicatorRow(t *testing.T) {
	window := rising(5, 100)
	sma20, sma50 := 90.0, 80.0
	row := Compute("BTC-USD", 60, window, model.IndicatorRow{SMA20: &sma20, SMA50: &sma50})
	last := window[len(window)-1].Close
	require.NotZero(t, sma20)
	assert.InDelta(t, (last-sma20)/sma20, row.Trend.DistanceSMA20, 1e-9)
	assert.Equal(t, 1.0, row.Trend.AboveSMA20)
	assert.InDelta(t, (sma20-sma50)/sma50, row.Trend.TrendStrength, 1e-9)
}

func TestCompute_NoNaNOrInfInOutput(t *testing.T) {
	// A flat, single-candle window stresses every division-by-zero guard.
	window := []model.Candle{{Symbol: "X", TF: 60, TSBucket: time.Now().UTC(), Open: 0, High: 0, Low: 0, Close: 0, Volume: 0}}
	row := Compute("X", 60, window, model.IndicatorRow{})

	for _, v := range []float64{
		row.Returns.Return1, row.Returns.LogReturn1, row.Volatility.HighLowRatio,
		row.Volume.VolumeChange, row.Volume.VolumeRatio, row.Trend.TrendStrength,
	} {
		assert.False(t, isNaNOrInf(v))
	}
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
