package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantline/papertrader/internal/exchange"
)

const upsertCandleSQL = `
	INSERT INTO candles (symbol, tf, ts, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, tf, ts) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume`

// UpsertCandles writes a batch of candles atomically. Re-fetching an
// already-stored bar overwrites it, so ingestion is idempotent.
func (s *Store) UpsertCandles(ctx context.Context, symbol, tf string, candles []exchange.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin candle upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range candles {
		if _, err := tx.Exec(ctx, upsertCandleSQL,
			symbol, tf, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume,
		); err != nil {
			return fmt.Errorf("failed to upsert candle %s %s: %w", symbol, c.TS, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit candle upsert: %w", err)
	}
	return nil
}

// GetCandles returns the most recent limit candles in ascending time order
func (s *Store) GetCandles(ctx context.Context, symbol, tf string, limit int) ([]exchange.Candle, error) {
	rows, err := s.q.Query(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = $1 AND tf = $2
			ORDER BY ts DESC
			LIMIT $3
		) recent
		ORDER BY ts ASC`,
		symbol, tf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []exchange.Candle
	for rows.Next() {
		var c exchange.Candle
		if err := rows.Scan(&c.TS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LatestCandleTS returns the timestamp of the newest stored candle.
// A zero time means no candles exist for the pair yet.
func (s *Store) LatestCandleTS(ctx context.Context, symbol, tf string) (time.Time, error) {
	var ts time.Time
	err := s.q.QueryRow(ctx,
		`SELECT ts FROM candles WHERE symbol = $1 AND tf = $2 ORDER BY ts DESC LIMIT 1`,
		symbol, tf,
	).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest candle: %w", err)
	}
	return ts, nil
}

// CountCandles returns the number of stored candles for a pair
func (s *Store) CountCandles(ctx context.Context, symbol, tf string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM candles WHERE symbol = $1 AND tf = $2`,
		symbol, tf,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return n, nil
}
