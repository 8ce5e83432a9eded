package signal

import (
	"math"

	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/indicators"
)

// ExitAction says what to do with an open position after a new bar
type ExitAction string

const (
	ExitNone ExitAction = ""
	ExitStop ExitAction = "EXIT_STOP"
	ExitTime ExitAction = "EXIT_TIME"
)

// ExitConfig carries the exit-rule parameters
type ExitConfig struct {
	TrailATRMult float64
	TimeStopBars int
}

// ExitDecision is the outcome of managing a position against one bar
type ExitDecision struct {
	Action    ExitAction
	ExitPrice float64 // fill reference for stop exits (the stop itself)

	// Updated position state when no exit fires
	NewStop     float64
	NewExtreme  float64
	NewBarsHeld int
}

// ManageExit evaluates exits for an open position against the latest
// closed bar, in priority order: stop hit (intrabar low/high through the
// stop, filled at the stop price), then trailing ratchet update, then
// the time stop when no new extreme has printed for TimeStopBars bars.
func ManageExit(pos *db.Position, bar indicators.FeatureRow, cfg ExitConfig) ExitDecision {
	long := pos.Side == SideLong

	// 1. Stop hit inside the bar
	if long && bar.Low <= pos.StopPrice {
		return ExitDecision{Action: ExitStop, ExitPrice: pos.StopPrice}
	}
	if !long && bar.High >= pos.StopPrice {
		return ExitDecision{Action: ExitStop, ExitPrice: pos.StopPrice}
	}

	// 2. Trailing ratchet: the stop only ever tightens
	extreme := pos.ExtremeClose
	barsHeld := pos.BarsHeld + 1
	newExtreme := false
	if long && bar.Close > extreme {
		extreme = bar.Close
		newExtreme = true
	}
	if !long && bar.Close < extreme {
		extreme = bar.Close
		newExtreme = true
	}
	if newExtreme {
		barsHeld = 0
	}

	stop := pos.StopPrice
	if !math.IsNaN(bar.ATR14) {
		if long {
			if trail := extreme - cfg.TrailATRMult*bar.ATR14; trail > stop {
				stop = trail
			}
		} else {
			if trail := extreme + cfg.TrailATRMult*bar.ATR14; trail < stop {
				stop = trail
			}
		}
	}

	// 3. Time stop: stalled for TimeStopBars bars without a new extreme
	if barsHeld >= cfg.TimeStopBars {
		return ExitDecision{Action: ExitTime, ExitPrice: bar.Close}
	}

	return ExitDecision{
		Action:      ExitNone,
		NewStop:     stop,
		NewExtreme:  extreme,
		NewBarsHeld: barsHeld,
	}
}
