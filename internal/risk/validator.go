// Package risk is the last gate before the broker: proposal validation
// against hard caps, the volatility kill-switch, and the ledger
// invariant check.
package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/advisor"
	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/signal"
)

// Reason codes for validator rejections. These are control flow, not
// errors: a rejection is a normal, audited outcome.
type Reason string

const (
	ReasonSchemaInvalid  Reason = "SCHEMA_INVALID"
	ReasonSymbolPaused   Reason = "SYMBOL_PAUSED"
	ReasonKillSwitch     Reason = "KILL_SWITCH"
	ReasonCooldown       Reason = "COOLDOWN"
	ReasonPositionExists Reason = "POSITION_EXISTS"
	ReasonRegimeMismatch Reason = "REGIME_MISMATCH"
	ReasonExposureCap    Reason = "EXPOSURE_CAP"
	ReasonRiskCap        Reason = "RISK_CAP"
)

// Tolerance for float comparisons against the caps
const capEpsilon = 1e-9

// Context is the account state a proposal is validated against
type Context struct {
	Regime     signal.Regime
	Position   *db.Position
	NAV        float64
	KillSwitch bool
	Cooldown   bool
	Paused     bool
}

// Validator enforces the risk caps on entry proposals
type Validator struct {
	cfg config.RiskConfig
	log zerolog.Logger
}

// NewValidator creates a validator
func NewValidator(cfg config.RiskConfig) *Validator {
	return &Validator{
		cfg: cfg,
		log: config.NewLogger("risk"),
	}
}

// Validate checks an entry proposal. ok=false comes with the first
// failing reason, in a fixed check order so rejections are stable.
func (v *Validator) Validate(p *advisor.Proposal, c Context) (Reason, bool) {
	isEntry := p.Action == advisor.ActionEnterLong || p.Action == advisor.ActionEnterShort
	if !isEntry {
		return "", true // holds and exits are not the validator's concern
	}

	if p.Qty <= 0 || p.Entry <= 0 ||
		(p.Action == advisor.ActionEnterLong && p.Stop >= p.Entry) ||
		(p.Action == advisor.ActionEnterShort && p.Stop <= p.Entry) {
		return ReasonSchemaInvalid, false
	}
	if c.Paused {
		return ReasonSymbolPaused, false
	}
	if c.KillSwitch {
		return ReasonKillSwitch, false
	}
	if c.Cooldown {
		return ReasonCooldown, false
	}
	if c.Position != nil {
		return ReasonPositionExists, false
	}
	if c.Regime != signal.RegimeTrend {
		return ReasonRegimeMismatch, false
	}

	notional := p.Qty * p.Entry
	if notional > v.cfg.MaxExposure*c.NAV+capEpsilon {
		return ReasonExposureCap, false
	}

	riskAmount := p.Qty * math.Abs(p.Entry-p.Stop)
	if riskAmount > v.cfg.RiskPerTrade*c.NAV+capEpsilon {
		return ReasonRiskCap, false
	}

	return "", true
}

// InvariantBreached reports a position/trade ledger disagreement: a
// position row must pair with exactly one open trade, and flat symbols
// with none.
func InvariantBreached(pos *db.Position, openTrades int) bool {
	if pos == nil {
		return openTrades != 0
	}
	return openTrades != 1
}
