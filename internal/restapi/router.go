// Package restapi implements the REST surface named in spec 6: symbols,
// charts, features, quality, alerts CRUD, and health — plus the rate
// limit headers and auth gate every protected route carries.
//
// Grounded on JoshBaneyCS-stocks-web's cmd/server/main.go router wiring
// (chi + chi/cors + chi middleware stack, RequireAuth-gated route groups)
// and its internal/handlers package (JSON response helpers, query-param
// parsing, chi.URLParam symbol extraction).
package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mytechsonamy/crypto-stock-platform/internal/auth"
	"github.com/mytechsonamy/crypto-stock-platform/internal/catalog"
	"github.com/mytechsonamy/crypto-stock-platform/internal/health"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ratelimit"
)

// Deps bundles everything the router needs — no package-level
// singletons (spec Design Notes: "global_catalog, global_auth, etc. are
// parameters").
type Deps struct {
	Catalog    *catalog.Catalog
	Candles    model.CandleStore
	Indicators model.IndicatorStore
	Features   model.FeatureStore
	Quality    model.QualityStore
	Alerts     model.AlertStore
	Health     *health.Aggregator
	Verifier   *auth.Verifier
	RateLimit  *ratelimit.Limiter
	Local      *ratelimit.LocalLimiter
	Log        *slog.Logger

	AllowedOrigins []string
}

// NewRouter builds the full chi router for cmd/gateway's REST surface.
func NewRouter(d Deps) http.Handler {
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.logRequest)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.Local != nil {
		r.Use(d.Local.Middleware(clientKey))
	}
	r.Use(h.rateLimitHeaders)

	r.Get("/health", h.getHealth)
	r.Get("/symbols", h.getSymbols)
	r.Get("/charts/{symbol}", h.getCharts)
	r.Get("/features/{symbol}", h.getFeatures)
	r.Get("/quality/{symbol}", h.getQuality)

	r.Group(func(r chi.Router) {
		r.Use(d.Verifier.RequireAuth)
		r.Get("/alerts", h.listAlerts)
		r.Post("/alerts", h.createAlert)
		r.Get("/alerts/{id}", h.getAlert)
		r.Put("/alerts/{id}", h.updateAlert)
		r.Delete("/alerts/{id}", h.deleteAlert)
	})

	return r
}

type handler struct {
	Deps
}

func clientKey(r *http.Request) string {
	if userID := auth.UserIDFromContext(r.Context()); userID != "" {
		return userID
	}
	return r.RemoteAddr
}

func (h *handler) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.Log.Info("restapi request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// rateLimitHeaders applies the distributed limiter and sets
// X-RateLimit-{Limit,Remaining,Reset}, denying with 429 + Retry-After on
// exhaustion (spec 6).
func (h *handler) rateLimitHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.RateLimit == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision := h.RateLimit.Allow(r.Context(), clientKey(r), 1)
		w.Header().Set("X-RateLimit-Limit", itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", itoa(int(decision.Reset.Seconds())))
		if !decision.Allowed {
			w.Header().Set("Retry-After", itoa(int(decision.RetryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) getHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.Health.Aggregate(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "health store unreachable")
		return
	}
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *handler) getSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Catalog.ByVenue())
}
