package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// NAVSnapshot is one per-cycle valuation of the paper account
type NAVSnapshot struct {
	TS             time.Time `json:"ts" db:"ts"`
	NAV            float64   `json:"nav" db:"nav"`
	Cash           float64   `json:"cash" db:"cash"`
	PositionsValue float64   `json:"positions_value" db:"positions_value"`
	RealizedPnL    float64   `json:"realized_pnl" db:"realized_pnl"`
	UnrealizedPnL  float64   `json:"unrealized_pnl" db:"unrealized_pnl"`
	DrawdownPct    float64   `json:"dd_pct" db:"dd_pct"` // fraction of peak, not percent
}

// InsertNAV appends a NAV snapshot. Snapshots are derived each cycle and
// never updated in place; a duplicate timestamp overwrites (cycle re-run).
func (s *Store) InsertNAV(ctx context.Context, snap NAVSnapshot) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO nav (ts, nav, cash, positions_value, realized_pnl, unrealized_pnl, dd_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ts) DO UPDATE SET
			nav = EXCLUDED.nav,
			cash = EXCLUDED.cash,
			positions_value = EXCLUDED.positions_value,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			dd_pct = EXCLUDED.dd_pct`,
		snap.TS, snap.NAV, snap.Cash, snap.PositionsValue,
		snap.RealizedPnL, snap.UnrealizedPnL, snap.DrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert nav snapshot: %w", err)
	}
	return nil
}

// LatestNAV returns the most recent NAV snapshot, or nil when none exists
func (s *Store) LatestNAV(ctx context.Context) (*NAVSnapshot, error) {
	var snap NAVSnapshot
	err := s.q.QueryRow(ctx, `
		SELECT ts, nav, cash, positions_value, realized_pnl, unrealized_pnl, dd_pct
		FROM nav ORDER BY ts DESC LIMIT 1`,
	).Scan(&snap.TS, &snap.NAV, &snap.Cash, &snap.PositionsValue,
		&snap.RealizedPnL, &snap.UnrealizedPnL, &snap.DrawdownPct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest nav: %w", err)
	}
	return &snap, nil
}
