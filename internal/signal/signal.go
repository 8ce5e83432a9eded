// Package signal holds the deterministic trading rules: regime
// classification, breakout entries, position sizing, and exit management.
package signal

import (
	"math"

	"github.com/quantline/papertrader/internal/indicators"
)

// Regime labels the market state for the entry gate
type Regime string

const (
	RegimeTrend Regime = "trend"
	RegimeChop  Regime = "chop"
)

// Position sides
const (
	SideLong  = "long"
	SideShort = "short"
)

// Rule thresholds
const (
	ADXTrendThreshold = 20.0
	RVOLThreshold     = 1.5
	QtyDecimals       = 8
)

// ClassifyRegime returns trend iff ADX14 > 20 and EMA50 > EMA200.
// NaN inputs (warm-up not satisfied) always classify as chop.
func ClassifyRegime(row indicators.FeatureRow) Regime {
	if math.IsNaN(row.ADX14) || math.IsNaN(row.EMA50) || math.IsNaN(row.EMA200) {
		return RegimeChop
	}
	if row.ADX14 > ADXTrendThreshold && row.EMA50 > row.EMA200 {
		return RegimeTrend
	}
	return RegimeChop
}

// Entry checks the breakout predicates on the latest closed bar.
// Long: close above the Donchian upper channel with positive money flow
// and elevated relative volume. Short is the mirror, gated by config.
// Returns the side and whether an entry fired.
func Entry(row indicators.FeatureRow, allowShorts bool) (string, bool) {
	if math.IsNaN(row.DonchUpper) || math.IsNaN(row.CMF20) || math.IsNaN(row.RVOL20) {
		return "", false
	}

	if row.Close > row.DonchUpper && row.CMF20 > 0 && row.RVOL20 > RVOLThreshold {
		return SideLong, true
	}
	if allowShorts && !math.IsNaN(row.DonchLower) &&
		row.Close < row.DonchLower && row.CMF20 < 0 && row.RVOL20 > RVOLThreshold {
		return SideShort, true
	}
	return "", false
}

// InitialStop places the protective stop stopMult ATRs away from entry
func InitialStop(side string, entry, atr, stopMult float64) float64 {
	if side == SideShort {
		return entry + stopMult*atr
	}
	return entry - stopMult*atr
}

// Size computes the order quantity: riskPerTrade of NAV at risk between
// entry and stop, clamped so notional never exceeds maxExposure of NAV.
// The result is truncated to the 8-decimal exchange step so the caps
// are never exceeded by rounding. Zero means the trade is too small to
// take.
func Size(nav, riskPerTrade, maxExposure, entry, stop float64) float64 {
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit <= 0 || entry <= 0 || nav <= 0 {
		return 0
	}

	qty := riskPerTrade * nav / riskPerUnit
	maxQty := maxExposure * nav / entry
	if qty > maxQty {
		qty = maxQty
	}
	pow := math.Pow(10, QtyDecimals)
	return math.Floor(qty*pow) / pow
}

// RoundQty rounds a quantity to the 8-decimal exchange step
func RoundQty(qty float64) float64 {
	pow := math.Pow(10, QtyDecimals)
	return math.Round(qty*pow) / pow
}
