package sqlite

import (
	"context"
	"database/sql"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// InsertQualitySample implements model.QualityStore. Quality samples are
// append-only (spec 3): no natural key to UPSERT on.
func (s *Store) InsertQualitySample(ctx context.Context, sample model.QualitySample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data_quality_metrics (ts, symbol, venue, check_kind, outcome, reason, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sample.TS.Unix(), sample.Symbol, sample.Venue, sample.CheckKind, string(sample.Outcome), sample.Reason, sample.QualityScore)
	return err
}

// RecentFailures implements model.QualityStore.
func (s *Store) RecentFailures(ctx context.Context, symbol string, since int64, limit int) ([]model.QualitySample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, symbol, venue, check_kind, outcome, reason, quality_score
		FROM data_quality_metrics
		WHERE symbol = ? AND ts >= ? AND outcome = 'fail'
		ORDER BY ts DESC LIMIT ?
	`, symbol, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QualitySample
	for rows.Next() {
		var qs model.QualitySample
		var ts int64
		var outcome string
		if err := rows.Scan(&ts, &qs.Symbol, &qs.Venue, &qs.CheckKind, &outcome, &qs.Reason, &qs.QualityScore); err != nil {
			return nil, err
		}
		qs.TS = unixToTime(ts)
		qs.Outcome = model.QualityOutcome(outcome)
		out = append(out, qs)
	}
	return out, rows.Err()
}

// Summary implements model.QualityStore: pass/fail counts and the average
// recorded quality_score over the window, plus the most recent failures
// (spec 6: "GET /quality/{symbol}?hours — score, pass/fail counts, recent
// failures.").
func (s *Store) Summary(ctx context.Context, symbol string, since int64) (model.QualitySummary, error) {
	var summary model.QualitySummary
	var avgScore sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN outcome = 'pass' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'fail' THEN 1 ELSE 0 END), 0),
			AVG(quality_score)
		FROM data_quality_metrics WHERE symbol = ? AND ts >= ?
	`, symbol, since).Scan(&summary.PassCount, &summary.FailCount, &avgScore)
	if err != nil {
		return summary, err
	}
	if avgScore.Valid {
		summary.Score = avgScore.Float64
	}

	recent, err := s.RecentFailures(ctx, symbol, since, 50)
	if err != nil {
		return summary, err
	}
	summary.RecentFail = recent
	return summary, nil
}
