package restapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultQualityWindowHours = 24

// getQuality implements GET /quality/{symbol}?hours (spec 6): score,
// pass/fail counts, recent failures.
func (h *handler) getQuality(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	hours := intQueryParam(r, "hours", defaultQualityWindowHours)
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	summary, err := h.Quality.Summary(r.Context(), symbol, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "quality store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
