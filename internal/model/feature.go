package model

import "time"

// FeatureVersion is the forward-compatible schema tag stamped on every
// FeatureRow produced by the current feature engineer.
const FeatureVersion = "v1.0"

// ReturnsFeatures covers returns/momentum/acceleration.
type ReturnsFeatures struct {
	Return1  float64 `json:"return_1"`
	Return5  float64 `json:"return_5"`
	Return10 float64 `json:"return_10"`
	LogReturn1 float64 `json:"log_return_1"`
	Momentum   float64 `json:"momentum"`
	Acceleration float64 `json:"acceleration"`
}

// VolatilityFeatures covers rolling stdev / range / trend of volatility.
type VolatilityFeatures struct {
	Stdev5       float64 `json:"stdev_5"`
	Stdev10      float64 `json:"stdev_10"`
	Stdev20      float64 `json:"stdev_20"`
	HighLowRatio float64 `json:"high_low_ratio"`
	TrueRange    float64 `json:"true_range"`
	VolatilityTrend float64 `json:"volatility_trend"`
}

// VolumeFeatures covers volume dynamics.
type VolumeFeatures struct {
	VolumeChange    float64 `json:"volume_change"`
	VolumeMomentum  float64 `json:"volume_momentum"`
	VolumeRatio     float64 `json:"volume_ratio"`
	CumulativeVolumePriceTrend float64 `json:"cum_volume_price_trend"`
}

// TechnicalFeatures derives flags/ratios from the indicator battery.
type TechnicalFeatures struct {
	RSIOversold     float64 `json:"rsi_oversold"`  // 1 if rsi < 30
	RSINeutral      float64 `json:"rsi_neutral"`   // 1 if 30 <= rsi <= 70
	RSIOverbought   float64 `json:"rsi_overbought"`// 1 if rsi > 70
	MACDCrossUp     float64 `json:"macd_cross_up"`
	MACDCrossDown   float64 `json:"macd_cross_down"`
	BollPosition    float64 `json:"boll_position"` // (close-lower)/(upper-lower)
	BollWidth       float64 `json:"boll_width"`
	BollSqueeze     float64 `json:"boll_squeeze"`
}

// CalendarFeatures are deterministic functions of TSBucket.
type CalendarFeatures struct {
	Hour        float64 `json:"hour"`
	DayOfWeek   float64 `json:"day_of_week"`
	IsWeekend   float64 `json:"is_weekend"`
	IsMarketOpen float64 `json:"is_market_open"`
}

// TrendFeatures cover SMA-distance and cross-SMA trend strength.
type TrendFeatures struct {
	DistanceSMA20   float64 `json:"distance_sma_20"`
	DistanceSMA50   float64 `json:"distance_sma_50"`
	AboveSMA20      float64 `json:"above_sma_20"`
	AboveSMA50      float64 `json:"above_sma_50"`
	TrendStrength   float64 `json:"trend_strength"` // (sma20-sma50)/sma50
}

// FeatureRow is the 33-feature ML-ready vector derived from a bar
// plus its indicator window. Keyed by (Symbol, TF, TSBucket, FeatureVersion).
type FeatureRow struct {
	Symbol         string    `json:"symbol"`
	TF             int       `json:"tf"`
	TSBucket       time.Time `json:"ts_bucket"`
	FeatureVersion string    `json:"feature_version"`

	Returns    ReturnsFeatures    `json:"returns"`
	Volatility VolatilityFeatures `json:"volatility"`
	Volume     VolumeFeatures     `json:"volume"`
	Technical  TechnicalFeatures  `json:"technical"`
	Calendar   CalendarFeatures   `json:"calendar"`
	Trend      TrendFeatures      `json:"trend"`
}

// CacheKey returns the Redis hash cache key for the latest feature row.
func (f *FeatureRow) CacheKey() string {
	return "features:" + f.Symbol + ":latest"
}
