package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// getFeatures implements GET /features/{symbol}?mode=realtime|batch&start&end
// (spec 6). realtime (the default) returns the latest feature row; batch
// returns the [start,end] window.
func (h *handler) getFeatures(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	tf := intQueryParam(r, "timeframe", defaultTimeframe)
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "realtime"
	}

	switch mode {
	case "realtime":
		row, err := h.Features.LatestFeatureRow(r.Context(), symbol, tf)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "feature store unavailable")
			return
		}
		if row == nil {
			writeError(w, http.StatusNotFound, "no features computed yet for this symbol")
			return
		}
		writeJSON(w, http.StatusOK, row)
	case "batch":
		start := intQueryParam(r, "start", int(time.Now().Add(-24*time.Hour).Unix()))
		end := intQueryParam(r, "end", int(time.Now().Unix()))
		rows, err := h.Features.FeatureHistory(r.Context(), symbol, tf, int64(start), int64(end))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "feature store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	default:
		writeError(w, http.StatusBadRequest, "mode must be realtime or batch")
	}
}
