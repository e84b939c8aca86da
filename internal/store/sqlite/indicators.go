package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// UpsertIndicatorRow implements model.IndicatorStore.
func (s *Store) UpsertIndicatorRow(ctx context.Context, r model.IndicatorRow) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indicators (symbol, tf, ts_bucket, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, tf, ts_bucket) DO UPDATE SET data=excluded.data
	`, r.Symbol, r.TF, r.TSBucket.Unix(), string(data))
	return err
}

// LatestIndicatorRow implements model.IndicatorStore.
func (s *Store) LatestIndicatorRow(ctx context.Context, symbol string, tf int) (*model.IndicatorRow, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM indicators WHERE symbol = ? AND tf = ? ORDER BY ts_bucket DESC LIMIT 1
	`, symbol, tf).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r model.IndicatorRow
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// indicatorHistory loads the last limit indicator rows for a symbol+tf,
// oldest first — used by the indicator engine to seed series-dependent
// computations (e.g. MACD signal line) after a restart.
func (s *Store) indicatorHistory(ctx context.Context, symbol string, tf, limit int) ([]model.IndicatorRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM indicators WHERE symbol = ? AND tf = ? ORDER BY ts_bucket DESC LIMIT ?
	`, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IndicatorRow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.IndicatorRow
		if err := json.Unmarshal([]byte(data), &r); err == nil {
			out = append(out, r)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
