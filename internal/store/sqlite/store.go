// Package sqlite is the durable time-series store: candles, indicator
// rows, feature rows, quality samples, and alert rules, all append-with-
// UPSERT on their natural key. Grounded on the teacher's
// internal/store/sqlite (single-writer WAL + batched-transaction idiom),
// extended with the additional tables the spec's persisted schema names.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string
}

// Store is a single-writer SQLite-backed implementation of every storage
// port in internal/model (CandleStore, IndicatorStore, FeatureStore,
// QualityStore, AlertStore).
type Store struct {
	db  *sql.DB
	log *slog.Logger

	candleCh chan candleWrite
	done     chan struct{}
}

// DB exposes the underlying *sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (creating if absent) the SQLite database in WAL mode, creates
// the schema, and starts the batched candle-write loop.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{db: db, log: logger, candleCh: make(chan candleWrite, 4096), done: make(chan struct{})}
	go s.runCandleBatcher()
	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS symbols (
			venue        TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			asset_class  TEXT NOT NULL,
			is_active    INTEGER NOT NULL DEFAULT 1,
			display_name TEXT,
			metadata     TEXT,
			PRIMARY KEY (venue, symbol)
		);

		CREATE TABLE IF NOT EXISTS candles (
			symbol      TEXT    NOT NULL,
			venue       TEXT    NOT NULL,
			tf          INTEGER NOT NULL,
			ts_bucket   INTEGER NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      REAL NOT NULL,
			trade_count INTEGER NOT NULL,
			completed   INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (symbol, venue, tf, ts_bucket)
		);
		CREATE INDEX IF NOT EXISTS idx_candles_recent ON candles (symbol, tf, ts_bucket DESC);

		CREATE TABLE IF NOT EXISTS indicators (
			symbol     TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts_bucket  INTEGER NOT NULL,
			data       TEXT    NOT NULL,
			PRIMARY KEY (symbol, tf, ts_bucket)
		);

		CREATE TABLE IF NOT EXISTS ml_features (
			symbol          TEXT    NOT NULL,
			tf              INTEGER NOT NULL,
			ts_bucket       INTEGER NOT NULL,
			feature_version TEXT    NOT NULL,
			data            TEXT    NOT NULL,
			PRIMARY KEY (symbol, tf, ts_bucket, feature_version)
		);

		CREATE TABLE IF NOT EXISTS data_quality_metrics (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            INTEGER NOT NULL,
			symbol        TEXT    NOT NULL,
			venue         TEXT    NOT NULL,
			check_kind    TEXT    NOT NULL,
			outcome       TEXT    NOT NULL,
			reason        TEXT,
			quality_score REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_quality_symbol_ts ON data_quality_metrics (symbol, ts DESC);

		CREATE TABLE IF NOT EXISTS alerts (
			id            TEXT PRIMARY KEY,
			user          TEXT    NOT NULL,
			symbol        TEXT    NOT NULL,
			condition     TEXT    NOT NULL,
			threshold     REAL    NOT NULL,
			channels      TEXT    NOT NULL,
			cooldown_s    INTEGER NOT NULL,
			one_shot      INTEGER NOT NULL,
			is_active     INTEGER NOT NULL,
			last_fired_at INTEGER,
			fire_count    INTEGER NOT NULL DEFAULT 0,
			metadata      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_symbol_active ON alerts (symbol, is_active);
	`)
	return err
}

// Close stops the batcher and closes the database.
func (s *Store) Close() error {
	close(s.done)
	return s.db.Close()
}
