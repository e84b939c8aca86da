package model

import "context"

// Storage port interfaces decouple compute components from their concrete
// backing store (SQLite for durability, Redis for cache/bus). Every
// component that touches storage takes these as constructor parameters —
// no package-level singletons (spec Design Notes: "global_catalog,
// global_auth, etc. are parameters").

// CandleStore persists and serves completed candles.
type CandleStore interface {
	UpsertCandle(ctx context.Context, c Candle) error
	RecentCandles(ctx context.Context, symbol string, tf int, limit int) ([]Candle, error)
	Close() error
}

// IndicatorStore persists and serves indicator rows.
type IndicatorStore interface {
	UpsertIndicatorRow(ctx context.Context, r IndicatorRow) error
	LatestIndicatorRow(ctx context.Context, symbol string, tf int) (*IndicatorRow, error)
	Close() error
}

// FeatureStore persists feature rows and serves the latest one per symbol.
type FeatureStore interface {
	UpsertFeatureRow(ctx context.Context, f FeatureRow) error
	LatestFeatureRow(ctx context.Context, symbol string, tf int) (*FeatureRow, error)
	// FeatureHistory serves GET /features/{symbol}?mode=batch, the
	// [startUnix, endUnix] window of feature rows, oldest first.
	FeatureHistory(ctx context.Context, symbol string, tf int, startUnix, endUnix int64) ([]FeatureRow, error)
	Close() error
}

// QualitySummary is the aggregate GET /quality/{symbol} response body:
// score, pass/fail counts over the requested window (spec 6).
type QualitySummary struct {
	Score      float64         `json:"quality_score"`
	PassCount  int             `json:"pass_count"`
	FailCount  int             `json:"fail_count"`
	RecentFail []QualitySample `json:"recent_failures"`
}

// QualityStore persists quality samples for audit/inspection.
type QualityStore interface {
	InsertQualitySample(ctx context.Context, s QualitySample) error
	RecentFailures(ctx context.Context, symbol string, since int64, limit int) ([]QualitySample, error)
	Summary(ctx context.Context, symbol string, since int64) (QualitySummary, error)
	Close() error
}

// AlertStore persists alert rules and their fire state.
type AlertStore interface {
	ActiveRules(ctx context.Context, symbol string) ([]AlertRule, error)
	SaveRuleFireState(ctx context.Context, r AlertRule) error
	// RulesByUser lists every rule (active or not) a user owns, for the
	// alerts management REST surface (spec 6).
	RulesByUser(ctx context.Context, user string) ([]AlertRule, error)
	// RuleByID fetches a single rule, used to authorize PUT/DELETE against
	// its owning user before mutating it.
	RuleByID(ctx context.Context, id string) (*AlertRule, error)
	// UpsertRule creates or fully replaces a rule (REST create/update),
	// distinct from SaveRuleFireState which only persists evaluation state.
	UpsertRule(ctx context.Context, r AlertRule) error
	DeleteRule(ctx context.Context, id string) error
	Close() error
}

// SymbolStore persists the symbol catalog (spec 3: "Owned by the
// catalog; collectors only read").
type SymbolStore interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
	UpsertSymbol(ctx context.Context, s Symbol) error
	Close() error
}

// Cache is the narrow surface components need from the Redis-backed hot
// cache: hash reads/writes with TTL, and sorted-set bar history. It is
// deliberately smaller than a raw Redis client so compute packages don't
// depend on go-redis directly.
type Cache interface {
	SetHash(ctx context.Context, key string, fields map[string]string, ttlSeconds int) error
	GetHash(ctx context.Context, key string) (map[string]string, error)
	PushSortedSet(ctx context.Context, key string, score float64, member string, trimTo int) error
	Publish(ctx context.Context, channel string, payload []byte) error
}
