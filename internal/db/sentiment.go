package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SentimentRecord is a persisted sentiment snapshot for a symbol.
// Trend is always Sent24h - Sent7d.
type SentimentRecord struct {
	Symbol   string    `json:"symbol" db:"symbol"`
	TS       time.Time `json:"ts" db:"ts"`
	Sent24h  float64   `json:"sent_24h" db:"sent_24h"` // [-1, 1]
	Sent7d   float64   `json:"sent_7d" db:"sent_7d"`   // [-1, 1]
	Trend    float64   `json:"sent_trend" db:"sent_trend"`
	Burst    float64   `json:"burst" db:"burst"`
	Fallback bool      `json:"fallback" db:"fallback"`
	Sources  []string  `json:"sources" db:"sources"`
}

// UpsertSentiment writes a sentiment snapshot for its refresh window
func (s *Store) UpsertSentiment(ctx context.Context, r SentimentRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO sentiment (symbol, ts, sent_24h, sent_7d, sent_trend, burst, fallback, sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, ts) DO UPDATE SET
			sent_24h = EXCLUDED.sent_24h,
			sent_7d = EXCLUDED.sent_7d,
			sent_trend = EXCLUDED.sent_trend,
			burst = EXCLUDED.burst,
			fallback = EXCLUDED.fallback,
			sources = EXCLUDED.sources`,
		r.Symbol, r.TS, r.Sent24h, r.Sent7d, r.Trend, r.Burst, r.Fallback, r.Sources,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sentiment: %w", err)
	}
	return nil
}

// LatestSentiment returns the newest sentiment snapshot for a symbol,
// or nil when none has been recorded yet
func (s *Store) LatestSentiment(ctx context.Context, symbol string) (*SentimentRecord, error) {
	var r SentimentRecord
	err := s.q.QueryRow(ctx, `
		SELECT symbol, ts, sent_24h, sent_7d, sent_trend, burst, fallback, sources
		FROM sentiment WHERE symbol = $1 ORDER BY ts DESC LIMIT 1`,
		symbol,
	).Scan(&r.Symbol, &r.TS, &r.Sent24h, &r.Sent7d, &r.Trend,
		&r.Burst, &r.Fallback, &r.Sources)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment %s: %w", symbol, err)
	}
	return &r, nil
}
