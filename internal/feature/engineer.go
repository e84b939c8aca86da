package feature

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Engineer wires Compute to storage and the cache: spec 4.6 "Writes to
// store and caches features:{symbol}:latest with 5 min TTL."
type Engineer struct {
	store model.FeatureStore
	cache model.Cache
	log   *slog.Logger
}

func NewEngineer(store model.FeatureStore, cache model.Cache, log *slog.Logger) *Engineer {
	return &Engineer{store: store, cache: cache, log: log}
}

// Handoff matches indicator.Handoff's signature so an *Engineer can be
// passed straight into indicator.New as the pipeline's step 5.
func (e *Engineer) Handoff(ctx context.Context, candle model.Candle, row model.IndicatorRow, window []model.Candle) {
	f := Compute(candle.Symbol, candle.TF, window, row)

	if err := e.store.UpsertFeatureRow(ctx, f); err != nil {
		e.log.Error("upsert feature row failed", "symbol", candle.Symbol, "tf", candle.TF, "error", err)
	}

	if e.cache == nil {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		e.log.Error("marshal feature row failed", "symbol", candle.Symbol, "error", err)
		return
	}
	if err := e.cache.SetHash(ctx, f.CacheKey(), map[string]string{"row": string(payload)}, 300); err != nil {
		e.log.Error("cache feature row failed", "symbol", candle.Symbol, "error", err)
	}
}
