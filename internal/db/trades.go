package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Trade is one round trip (or its open half) through the paper broker
type Trade struct {
	ID          string          `json:"id" db:"id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Side        string          `json:"side" db:"side"`
	Qty         float64         `json:"qty" db:"qty"`
	EntryPrice  float64         `json:"entry_price" db:"entry_price"`
	ExitPrice   *float64        `json:"exit_price,omitempty" db:"exit_price"`
	EntryTS     time.Time       `json:"entry_ts" db:"entry_ts"`
	ExitTS      *time.Time      `json:"exit_ts,omitempty" db:"exit_ts"`
	Fees        float64         `json:"fees" db:"fees"`
	SlippageBps float64         `json:"slippage_bps" db:"slippage_bps"`
	PnL         *float64        `json:"pnl,omitempty" db:"pnl"`
	Status      string          `json:"status" db:"status"` // "open" or "closed"
	ExitReason  *string         `json:"exit_reason,omitempty" db:"exit_reason"`
	DecisionID  string          `json:"decision_id" db:"decision_id"`
	Rationale   json.RawMessage `json:"rationale,omitempty" db:"rationale"`
}

// OpenTrade inserts the open trade and its position row in one transaction,
// so the trade ledger and the position table can never disagree on entry.
func (s *Store) OpenTrade(ctx context.Context, t Trade, p Position) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin open-trade tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rationale any
	if len(t.Rationale) > 0 {
		rationale = []byte(t.Rationale)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO trades (id, symbol, side, qty, entry_price, entry_ts,
		                    fees, slippage_bps, status, decision_id, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'open', $9, $10)`,
		t.ID, t.Symbol, t.Side, t.Qty, t.EntryPrice, t.EntryTS,
		t.Fees, t.SlippageBps, t.DecisionID, rationale,
	); err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO positions (symbol, side, qty, entry_price, stop_price,
		                       entry_ts, extreme_close, bars_held, decision_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)`,
		p.Symbol, p.Side, p.Qty, p.EntryPrice, p.StopPrice,
		p.EntryTS, p.ExtremeClose, p.DecisionID,
	); err != nil {
		return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit open-trade tx: %w", err)
	}
	return nil
}

// CloseTradeParams carries the exit fill applied to the open trade
type CloseTradeParams struct {
	Symbol      string
	ExitPrice   float64
	ExitTS      time.Time
	ExitFees    float64
	ExitSlipBps float64
	PnL         float64
	ExitReason  string
	DecisionID  string
}

// CloseTrade finalises the open trade for a symbol and removes its position
// in one transaction. Fees accumulate across legs; the recorded slippage is
// the mean of the entry and exit legs.
func (s *Store) CloseTrade(ctx context.Context, params CloseTradeParams) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin close-trade tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE trades
		SET exit_price = $2,
		    exit_ts = $3,
		    fees = fees + $4,
		    slippage_bps = (slippage_bps + $5) / 2,
		    pnl = $6,
		    status = 'closed',
		    exit_reason = $7
		WHERE symbol = $1 AND status = 'open'`,
		params.Symbol, params.ExitPrice, params.ExitTS, params.ExitFees,
		params.ExitSlipBps, params.PnL, params.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("failed to close trade %s: %w", params.Symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no open trade for %s", params.Symbol)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM positions WHERE symbol = $1`, params.Symbol,
	); err != nil {
		return fmt.Errorf("failed to delete position %s: %w", params.Symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit close-trade tx: %w", err)
	}
	return nil
}

// GetOpenTrade returns the open trade for a symbol, or nil when flat
func (s *Store) GetOpenTrade(ctx context.Context, symbol string) (*Trade, error) {
	var t Trade
	var rationale []byte
	err := s.q.QueryRow(ctx, `
		SELECT id, symbol, side, qty, entry_price, entry_ts, fees,
		       slippage_bps, decision_id, rationale
		FROM trades WHERE symbol = $1 AND status = 'open'`,
		symbol,
	).Scan(&t.ID, &t.Symbol, &t.Side, &t.Qty, &t.EntryPrice, &t.EntryTS,
		&t.Fees, &t.SlippageBps, &t.DecisionID, &rationale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open trade %s: %w", symbol, err)
	}
	t.Status = "open"
	t.Rationale = json.RawMessage(rationale)
	return &t, nil
}

// SumRealizedPnL returns total realized P&L across all closed trades
func (s *Store) SumRealizedPnL(ctx context.Context) (float64, error) {
	var total float64
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE status = 'closed'`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	return total, nil
}

// GetTradeWithRationale fetches a trade including its decision rationale blob
func (s *Store) GetTradeWithRationale(ctx context.Context, id string) (*Trade, error) {
	var t Trade
	var rationale []byte
	err := s.q.QueryRow(ctx, `
		SELECT id, symbol, side, qty, entry_price, exit_price, entry_ts, exit_ts,
		       fees, slippage_bps, pnl, status, exit_reason, decision_id, rationale
		FROM trades WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Symbol, &t.Side, &t.Qty, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTS, &t.ExitTS, &t.Fees, &t.SlippageBps, &t.PnL, &t.Status,
		&t.ExitReason, &t.DecisionID, &rationale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade %s: %w", id, err)
	}
	t.Rationale = json.RawMessage(rationale)
	return &t, nil
}

// CountOpenTrades returns the number of open trades for a symbol.
// Anything other than 0 (flat) or 1 (holding) is a ledger invariant breach.
func (s *Store) CountOpenTrades(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE symbol = $1 AND status = 'open'`,
		symbol,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open trades: %w", err)
	}
	return n, nil
}
