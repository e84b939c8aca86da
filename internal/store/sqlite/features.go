package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// UpsertFeatureRow implements model.FeatureStore.
func (s *Store) UpsertFeatureRow(ctx context.Context, f model.FeatureRow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_features (symbol, tf, ts_bucket, feature_version, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, tf, ts_bucket, feature_version) DO UPDATE SET data=excluded.data
	`, f.Symbol, f.TF, f.TSBucket.Unix(), f.FeatureVersion, string(data))
	return err
}

// LatestFeatureRow implements model.FeatureStore.
func (s *Store) LatestFeatureRow(ctx context.Context, symbol string, tf int) (*model.FeatureRow, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM ml_features WHERE symbol = ? AND tf = ?
		ORDER BY ts_bucket DESC LIMIT 1
	`, symbol, tf).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f model.FeatureRow
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FeatureHistory implements model.FeatureStore: the [startUnix, endUnix]
// window of feature rows, oldest first, for GET /features/{symbol}?mode=batch.
func (s *Store) FeatureHistory(ctx context.Context, symbol string, tf int, startUnix, endUnix int64) ([]model.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM ml_features
		WHERE symbol = ? AND tf = ? AND ts_bucket >= ? AND ts_bucket <= ?
		ORDER BY ts_bucket ASC
	`, symbol, tf, startUnix, endUnix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeatureRow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var f model.FeatureRow
		if err := json.Unmarshal([]byte(data), &f); err == nil {
			out = append(out, f)
		}
	}
	return out, rows.Err()
}
