package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Position is the single open position per symbol
type Position struct {
	Symbol       string    `json:"symbol" db:"symbol"`
	Side         string    `json:"side" db:"side"` // "long" or "short"
	Qty          float64   `json:"qty" db:"qty"`
	EntryPrice   float64   `json:"entry_price" db:"entry_price"`
	StopPrice    float64   `json:"stop_price" db:"stop_price"`
	EntryTS      time.Time `json:"entry_ts" db:"entry_ts"`
	ExtremeClose float64   `json:"extreme_close" db:"extreme_close"` // highest close for longs, lowest for shorts
	BarsHeld     int       `json:"bars_held" db:"bars_held"`
	DecisionID   string    `json:"decision_id" db:"decision_id"`
}

// GetPosition returns the open position for a symbol, or nil when flat
func (s *Store) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	var p Position
	err := s.q.QueryRow(ctx, `
		SELECT symbol, side, qty, entry_price, stop_price, entry_ts,
		       extreme_close, bars_held, decision_id
		FROM positions WHERE symbol = $1`,
		symbol,
	).Scan(&p.Symbol, &p.Side, &p.Qty, &p.EntryPrice, &p.StopPrice,
		&p.EntryTS, &p.ExtremeClose, &p.BarsHeld, &p.DecisionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query position %s: %w", symbol, err)
	}
	return &p, nil
}

// GetOpenPositions returns all open positions
func (s *Store) GetOpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.q.Query(ctx, `
		SELECT symbol, side, qty, entry_price, stop_price, entry_ts,
		       extreme_close, bars_held, decision_id
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Side, &p.Qty, &p.EntryPrice, &p.StopPrice,
			&p.EntryTS, &p.ExtremeClose, &p.BarsHeld, &p.DecisionID); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdatePositionState advances per-bar position state: the trailing stop,
// the running extreme close, and the bars-held counter.
func (s *Store) UpdatePositionState(ctx context.Context, symbol string, stopPrice, extremeClose float64, barsHeld int) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE positions
		SET stop_price = $2, extreme_close = $3, bars_held = $4, updated_at = now()
		WHERE symbol = $1`,
		symbol, stopPrice, extremeClose, barsHeld,
	)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no open position for %s", symbol)
	}
	return nil
}
