// Package feature implements the Feature Engineer (spec 4.6): given the
// latest candle window and its indicator row, it produces a fixed-schema
// 33-feature model.FeatureRow for downstream ML consumption.
//
// Grounded on original_source/ai/feature_store.py's
// _add_price_features/_add_volatility_features/_add_volume_features/
// _add_technical_features/_add_time_features/_add_trend_features pipeline
// and its bfill -> ffill -> zero NaN-cleaning strategy — reimplemented over
// a plain []model.Candle window instead of a pandas DataFrame, since this
// is a single always-latest row, not a batch transform.
package feature

import (
	"math"
	"reflect"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/indicator"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Compute derives the full feature row for the most recent candle in
// window, using row as the already-computed indicator snapshot for that
// same candle (spec 4.5 step 5: "Hand off to Feature Engineer (same
// window + indicators)").
func Compute(symbol string, tf int, window []model.Candle, row model.IndicatorRow) model.FeatureRow {
	out := model.FeatureRow{
		Symbol:         symbol,
		TF:             tf,
		FeatureVersion: model.FeatureVersion,
	}
	if len(window) == 0 {
		return out
	}
	last := window[len(window)-1]
	out.TSBucket = last.TSBucket

	closes := closesOf(window)
	n := len(closes)

	out.Returns = returnsFeatures(closes)
	out.Volatility = volatilityFeatures(window, closes)
	out.Volume = volumeFeatures(window)
	out.Technical = technicalFeatures(window, row, last)
	out.Calendar = calendarFeatures(last.TSBucket)
	out.Trend = trendFeatures(last.Close, row)

	_ = n
	return sanitize(out)
}

// sanitize is the terminal step of original_source's NaN-cleaning pipeline
// (bfill -> ffill -> fillna(0)). A single always-latest row has no
// neighboring rows to backfill or forward-fill from, so the only
// applicable step here is the last one: any NaN/Inf produced by a
// division this package didn't already guard becomes 0.
func sanitize(row model.FeatureRow) model.FeatureRow {
	zeroNaNs(reflect.ValueOf(&row.Returns).Elem())
	zeroNaNs(reflect.ValueOf(&row.Volatility).Elem())
	zeroNaNs(reflect.ValueOf(&row.Volume).Elem())
	zeroNaNs(reflect.ValueOf(&row.Technical).Elem())
	zeroNaNs(reflect.ValueOf(&row.Calendar).Elem())
	zeroNaNs(reflect.ValueOf(&row.Trend).Elem())
	return row
}

func zeroNaNs(v reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.Float64 {
			continue
		}
		val := f.Float()
		if math.IsNaN(val) || math.IsInf(val, 0) {
			f.SetFloat(0)
		}
	}
}

func closesOf(window []model.Candle) []float64 {
	closes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
	}
	return closes
}

func pctChange(closes []float64, i, lag int) float64 {
	if i-lag < 0 || closes[i-lag] == 0 {
		return 0
	}
	return (closes[i] - closes[i-lag]) / closes[i-lag]
}

func returnsFeatures(closes []float64) model.ReturnsFeatures {
	n := len(closes)
	last := n - 1
	f := model.ReturnsFeatures{
		Return1:  pctChange(closes, last, 1),
		Return5:  pctChange(closes, last, 5),
		Return10: pctChange(closes, last, 10),
	}
	if last-1 >= 0 && closes[last-1] > 0 && closes[last] > 0 {
		f.LogReturn1 = math.Log(closes[last] / closes[last-1])
	}
	f.Momentum = pctChange(closes, last, 5) // price_momentum_5 in original_source
	if last-1 >= 0 {
		prevReturn1 := pctChange(closes, last-1, 1)
		f.Acceleration = f.Return1 - prevReturn1
	}
	return f
}

func stdev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

func trailing(closes []float64, window int) []float64 {
	n := len(closes)
	if n == 0 {
		return nil
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	return closes[start:]
}

func volatilityFeatures(candles []model.Candle, closes []float64) model.VolatilityFeatures {
	n := len(candles)
	last := candles[n-1]

	f := model.VolatilityFeatures{
		Stdev5:  stdev(trailing(closes, 5)),
		Stdev10: stdev(trailing(closes, 10)),
		Stdev20: stdev(trailing(closes, 20)),
	}
	if last.Close != 0 {
		f.HighLowRatio = (last.High - last.Low) / last.Close
	}
	if n >= 2 {
		prevClose := candles[n-2].Close
		tr := last.High - last.Low
		tr = math.Max(tr, math.Abs(last.High-prevClose))
		tr = math.Max(tr, math.Abs(last.Low-prevClose))
		f.TrueRange = tr
	} else {
		f.TrueRange = last.High - last.Low
	}
	if f.Stdev20 != 0 {
		f.VolatilityTrend = f.Stdev10 / f.Stdev20
	}
	return f
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func volumeFeatures(window []model.Candle) model.VolumeFeatures {
	n := len(window)
	volumes := make([]float64, n)
	for i, c := range window {
		volumes[i] = c.Volume
	}
	last := n - 1
	f := model.VolumeFeatures{}
	if last-1 >= 0 && volumes[last-1] != 0 {
		f.VolumeChange = (volumes[last] - volumes[last-1]) / volumes[last-1]
	}
	if last-5 >= 0 && volumes[last-5] != 0 {
		f.VolumeMomentum = (volumes[last] - volumes[last-5]) / volumes[last-5]
	}
	avg20 := mean(trailing(volumes, 20))
	if avg20 != 0 {
		f.VolumeRatio = volumes[last] / avg20
	}

	// Signed cumulative volume-price trend (OBV-like), accumulated from zero
	// across the whole window on every call — spec 4.6: "signed
	// cumulative volume-price trend".
	var cum float64
	for i := 1; i < n; i++ {
		switch {
		case window[i].Close > window[i-1].Close:
			cum += volumes[i]
		case window[i].Close < window[i-1].Close:
			cum -= volumes[i]
		}
	}
	f.CumulativeVolumePriceTrend = cum
	return f
}

func technicalFeatures(window []model.Candle, row model.IndicatorRow, last model.Candle) model.TechnicalFeatures {
	f := model.TechnicalFeatures{}
	if row.RSI != nil {
		switch {
		case *row.RSI < 30:
			f.RSIOversold = 1
		case *row.RSI > 70:
			f.RSIOverbought = 1
		default:
			f.RSINeutral = 1
		}
	}

	if up, down := macdCrossFlags(window); up {
		f.MACDCrossUp = 1
	} else if down {
		f.MACDCrossDown = 1
	}

	if row.BollUpper != nil && row.BollLower != nil && row.BollMiddle != nil {
		rng := *row.BollUpper - *row.BollLower
		if rng != 0 {
			f.BollPosition = (last.Close - *row.BollLower) / rng
		}
		if *row.BollMiddle != 0 {
			f.BollWidth = rng / *row.BollMiddle
			if squeeze := bollSqueeze(window, f.BollWidth); squeeze {
				f.BollSqueeze = 1
			}
		}
	}
	return f
}

// macdCrossFlags replays MACD across the window (cheap: O(1) kernels) to
// detect whether the most recent bar crossed the signal line, following
// original_source's `macd_diff.shift(1)` comparison.
func macdCrossFlags(window []model.Candle) (up, down bool) {
	m := indicator.NewMACD(12, 26, 9)
	var prevDiff float64
	var havePrev bool
	var diff float64
	var ready bool
	for _, c := range window {
		m.Update(c)
		r := m.Result()
		if !r.Ready {
			continue
		}
		if ready {
			prevDiff = diff
			havePrev = true
		}
		diff = r.Line - r.Signal
		ready = true
	}
	if !ready || !havePrev {
		return false, false
	}
	up = diff > 0 && prevDiff <= 0
	down = diff < 0 && prevDiff >= 0
	return up, down
}

// bollSqueeze replays Bollinger width across the window and reports
// whether the latest width sits below the trailing-20 mean width
// (original_source: "bb_width < bb_width.rolling(20).mean()").
func bollSqueeze(window []model.Candle, currentWidth float64) bool {
	b := indicator.NewBollinger(20, 2)
	var widths []float64
	for _, c := range window {
		b.Update(c)
		if !b.Ready() {
			continue
		}
		r := b.Result()
		if r.Middle == 0 {
			continue
		}
		widths = append(widths, (r.Upper-r.Lower)/r.Middle)
	}
	if len(widths) == 0 {
		return false
	}
	trailingWidths := widths
	if len(trailingWidths) > 20 {
		trailingWidths = trailingWidths[len(trailingWidths)-20:]
	}
	return currentWidth < mean(trailingWidths)
}

func calendarFeatures(ts time.Time) model.CalendarFeatures {
	ts = ts.UTC()
	dow := int(ts.Weekday())
	f := model.CalendarFeatures{
		Hour:      float64(ts.Hour()),
		DayOfWeek: float64(dow),
	}
	if dow == 0 || dow == 6 {
		f.IsWeekend = 1
	}
	// Market-open is a placeholder here, same as original_source's — the
	// authoritative answer lives with internal/clock and is folded into
	// Calendar by the caller when a venue-specific clock is available.
	f.IsMarketOpen = 1
	return f
}

func trendFeatures(close float64, row model.IndicatorRow) model.TrendFeatures {
	f := model.TrendFeatures{}
	if row.SMA20 != nil && *row.SMA20 != 0 {
		f.DistanceSMA20 = (close - *row.SMA20) / *row.SMA20
		if close > *row.SMA20 {
			f.AboveSMA20 = 1
		}
	}
	if row.SMA50 != nil && *row.SMA50 != 0 {
		f.DistanceSMA50 = (close - *row.SMA50) / *row.SMA50
		if close > *row.SMA50 {
			f.AboveSMA50 = 1
		}
	}
	if row.SMA20 != nil && row.SMA50 != nil && *row.SMA50 != 0 {
		f.TrendStrength = (*row.SMA20 - *row.SMA50) / *row.SMA50
	}
	return f
}

// WithMarketOpen overrides the calendar IsMarketOpen flag using a venue
// clock, replacing original_source's hardcoded placeholder.
func WithMarketOpen(row model.FeatureRow, open bool) model.FeatureRow {
	if open {
		row.Calendar.IsMarketOpen = 1
	} else {
		row.Calendar.IsMarketOpen = 0
	}
	return row
}
