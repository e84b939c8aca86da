package restapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const defaultTimeframe = 1 // 1-minute bars
const defaultChartLimit = 200

type chartResponse struct {
	Symbol     string `json:"symbol"`
	Timeframe  int    `json:"timeframe"`
	Bars       any    `json:"bars"`
	Indicators any    `json:"indicators,omitempty"`
}

// getCharts implements GET /charts/{symbol}?timeframe&limit (spec 6): bars
// plus latest indicators.
func (h *handler) getCharts(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	tf := intQueryParam(r, "timeframe", defaultTimeframe)
	limit := intQueryParam(r, "limit", defaultChartLimit)

	bars, err := h.Candles.RecentCandles(r.Context(), symbol, tf, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "candle store unavailable")
		return
	}
	indicators, err := h.Indicators.LatestIndicatorRow(r.Context(), symbol, tf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "indicator store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Symbol: symbol, Timeframe: tf, Bars: bars, Indicators: indicators})
}
