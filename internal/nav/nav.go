// Package nav values the paper account. The NAV is always derived from
// the starting cash, the closed-trade ledger, and current marks; it is
// never stored and edited in place.
package nav

import (
	"fmt"

	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/signal"
)

// Valuation is one point-in-time account valuation
type Valuation struct {
	NAV            float64
	Cash           float64
	PositionsValue float64
	Unrealized     float64
}

// Value computes the account valuation. marks maps symbol to the latest
// closed bar's close; every open position must have a mark.
func Value(startingCash, realized float64, positions []db.Position, marks map[string]float64) (Valuation, error) {
	var entryNotional, markNotional, unrealized float64

	for _, p := range positions {
		mark, ok := marks[p.Symbol]
		if !ok {
			return Valuation{}, fmt.Errorf("no mark for open position %s", p.Symbol)
		}
		sign := 1.0
		if p.Side == signal.SideShort {
			sign = -1.0
		}
		entryNotional += p.EntryPrice * p.Qty * sign
		markNotional += mark * p.Qty * sign
		unrealized += (mark - p.EntryPrice) * p.Qty * sign
	}

	cash := startingCash + realized - entryNotional
	return Valuation{
		NAV:            cash + markNotional,
		Cash:           cash,
		PositionsValue: markNotional,
		Unrealized:     unrealized,
	}, nil
}

// Drawdown returns the fractional drawdown from peak. Zero when the
// account has never had a positive peak.
func Drawdown(nav, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - nav) / peak
	if dd < 0 {
		return 0
	}
	return dd
}
