// Command gateway serves the REST API (spec 6) and WS fan-out (spec 4.8).
// It holds no direct connection to cmd/pipeline: chart updates and alerts
// arrive over Redis pub/sub, published there by cmd/pipeline's
// internal/bus.Bridge, and health reports are read from the
// "system:health" cache hash that cmd/pipeline's health.Recorder writes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mytechsonamy/crypto-stock-platform/config"
	"github.com/mytechsonamy/crypto-stock-platform/internal/auth"
	"github.com/mytechsonamy/crypto-stock-platform/internal/catalog"
	"github.com/mytechsonamy/crypto-stock-platform/internal/gateway"
	"github.com/mytechsonamy/crypto-stock-platform/internal/health"
	"github.com/mytechsonamy/crypto-stock-platform/internal/logger"
	"github.com/mytechsonamy/crypto-stock-platform/internal/ratelimit"
	"github.com/mytechsonamy/crypto-stock-platform/internal/restapi"
	redisstore "github.com/mytechsonamy/crypto-stock-platform/internal/store/redis"
	sqlitestore "github.com/mytechsonamy/crypto-stock-platform/internal/store/sqlite"
)

func main() {
	log := logger.Init("gateway", slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		log.Error("sqlite open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	cat := catalog.New(db)
	if err := cat.Refresh(ctx); err != nil {
		log.Warn("catalog refresh failed, starting empty", "error", err)
	}
	go refreshCatalogPeriodically(ctx, cat, log)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	limiter := ratelimit.New(cache, cfg.RateLimitCapacity, cfg.RateLimitRate, time.Second, log)
	local := ratelimit.NewLocalLimiter(cfg.LocalLimitPerSec, cfg.LocalLimitBurst)
	aggregator := health.NewAggregator(cache)

	router := restapi.NewRouter(restapi.Deps{
		Catalog:        cat,
		Candles:        db,
		Indicators:     db,
		Features:       db,
		Quality:        db,
		Alerts:         db,
		Health:         aggregator,
		Verifier:       verifier,
		RateLimit:      limiter,
		Local:          local,
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	hub := gateway.NewHub(db, db, log)
	go hub.RunFlusher(ctx)

	sub := gateway.NewSubscriber(cache.Client(), hub, log)
	go sub.Run(ctx)

	wsHandler := gateway.NewHandler(hub, verifier, cfg.AllowedOrigins, chartFanOutTF(cfg), log)

	mux := chi.NewRouter()
	mux.Get("/ws/{symbol}", wsHandler.ServeHTTP)
	mux.Mount("/", router)

	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", "addr", cfg.GatewayAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("gateway server failed", "error", err)
		os.Exit(1)
	}
}

func chartFanOutTF(cfg *config.Config) int {
	tfs := cfg.ParseTFs()
	if len(tfs) == 0 {
		return 60
	}
	return tfs[0]
}

func refreshCatalogPeriodically(ctx context.Context, cat *catalog.Catalog, log *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cat.Refresh(ctx); err != nil {
				log.Warn("catalog refresh failed", "error", err)
			}
		}
	}
}
