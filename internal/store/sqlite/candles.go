package sqlite

import (
	"context"
	"time"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

const (
	candleBatchSize  = 100
	candleFlushDelay = 200 * time.Millisecond
)

type candleWrite struct {
	candle model.Candle
	result chan error
}

// UpsertCandle implements model.CandleStore. It hands the candle to the
// batched writer goroutine and waits for that batch's commit result, so
// callers see an accurate error (spec 7: "individual inserts return
// failure").
func (s *Store) UpsertCandle(ctx context.Context, c model.Candle) error {
	result := make(chan error, 1)
	select {
	case s.candleCh <- candleWrite{candle: c, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errStoreClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) runCandleBatcher() {
	batch := make([]candleWrite, 0, candleBatchSize)
	timer := time.NewTimer(candleFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		err := s.insertCandleBatch(batch)
		for _, w := range batch {
			w.result <- err
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-s.done:
			flush()
			return
		case w := <-s.candleCh:
			batch = append(batch, w)
			if len(batch) >= candleBatchSize {
				flush()
				timer.Reset(candleFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(candleFlushDelay)
		}
	}
}

func (s *Store) insertCandleBatch(batch []candleWrite) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, venue, tf, ts_bucket, open, high, low, close, volume, trade_count, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, venue, tf, ts_bucket) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close,
			volume=excluded.volume, trade_count=excluded.trade_count, completed=excluded.completed
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, w := range batch {
		c := w.candle
		completed := 0
		if c.Completed {
			completed = 1
		}
		if _, err := stmt.Exec(c.Symbol, c.Venue, c.TF, c.TSBucket.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount, completed); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentCandles implements model.CandleStore: the most recent `limit`
// completed candles for (symbol, tf), oldest first.
func (s *Store) RecentCandles(ctx context.Context, symbol string, tf int, limit int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, venue, tf, ts_bucket, open, high, low, close, volume, trade_count, completed
		FROM candles WHERE symbol = ? AND tf = ?
		ORDER BY ts_bucket DESC LIMIT ?
	`, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		var ts int64
		var completed int
		if err := rows.Scan(&c.Symbol, &c.Venue, &c.TF, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.TradeCount, &completed); err != nil {
			return nil, err
		}
		c.TSBucket = time.Unix(ts, 0).UTC()
		c.Completed = completed != 0
		out = append(out, c)
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
