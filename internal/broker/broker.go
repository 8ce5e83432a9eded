// Package broker implements the paper fill model: volatility-scaled
// slippage, per-leg fees, and atomic trade/position bookkeeping.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/signal"
)

// Broker simulates fills and records them through the store
type Broker struct {
	store *db.Store
	cfg   config.BrokerConfig
	log   zerolog.Logger
}

// New creates a paper broker
func New(store *db.Store, cfg config.BrokerConfig) *Broker {
	return &Broker{
		store: store,
		cfg:   cfg,
		log:   config.NewLogger("broker"),
	}
}

// SlippageBps returns the simulated slippage in basis points for a fill
// against a bar: k of the bar's high-low range relative to the reference
// price, floored at minBps. A wide bar costs more to cross.
func SlippageBps(high, low, ref, minBps, k float64) float64 {
	if ref <= 0 {
		return minBps
	}
	rangeBps := k * (high - low) / ref * 10000
	if rangeBps < minBps {
		return minBps
	}
	return rangeBps
}

// FillPrice applies slippage against the taker: buys fill above the
// reference, sells below.
func FillPrice(ref, slipBps float64, buy bool) float64 {
	if buy {
		return ref * (1 + slipBps/10000)
	}
	return ref * (1 - slipBps/10000)
}

// OpenParams describes an entry to simulate
type OpenParams struct {
	Symbol     string
	Side       string // signal.SideLong or signal.SideShort
	Qty        float64
	RefPrice   float64 // latest closed bar's close
	BarHigh    float64
	BarLow     float64
	StopPrice  float64
	TS         time.Time
	DecisionID string
	Rationale  json.RawMessage
}

// OpenResult reports the simulated entry fill
type OpenResult struct {
	TradeID    string
	FillPrice  float64
	SlipBps    float64
	Fees       float64
	Notional   float64
}

// OpenTrade fills an entry and writes the trade and position atomically
func (b *Broker) OpenTrade(ctx context.Context, p OpenParams) (*OpenResult, error) {
	if p.Qty <= 0 {
		return nil, fmt.Errorf("cannot open %s with qty %f", p.Symbol, p.Qty)
	}

	slip := SlippageBps(p.BarHigh, p.BarLow, p.RefPrice, b.cfg.MinSlipBps, b.cfg.SlipRangeK)
	buy := p.Side == signal.SideLong
	fill := FillPrice(p.RefPrice, slip, buy)
	notional := fill * p.Qty
	fees := notional * b.cfg.FeeBps / 10000

	trade := db.Trade{
		ID:          uuid.NewString(),
		Symbol:      p.Symbol,
		Side:        p.Side,
		Qty:         p.Qty,
		EntryPrice:  fill,
		EntryTS:     p.TS,
		Fees:        fees,
		SlippageBps: slip,
		DecisionID:  p.DecisionID,
		Rationale:   p.Rationale,
	}
	pos := db.Position{
		Symbol:       p.Symbol,
		Side:         p.Side,
		Qty:          p.Qty,
		EntryPrice:   fill,
		StopPrice:    p.StopPrice,
		EntryTS:      p.TS,
		ExtremeClose: p.RefPrice,
		DecisionID:   p.DecisionID,
	}

	if err := b.store.OpenTrade(ctx, trade, pos); err != nil {
		return nil, fmt.Errorf("failed to record open trade: %w", err)
	}

	b.log.Info().
		Str("symbol", p.Symbol).
		Str("side", p.Side).
		Str("decision_id", p.DecisionID).
		Float64("qty", p.Qty).
		Float64("fill", fill).
		Float64("slip_bps", slip).
		Msg("opened paper trade")

	return &OpenResult{
		TradeID:   trade.ID,
		FillPrice: fill,
		SlipBps:   slip,
		Fees:      fees,
		Notional:  notional,
	}, nil
}

// CloseParams describes an exit to simulate
type CloseParams struct {
	Position   *db.Position
	RefPrice   float64 // stop price for stop exits, close for others
	BarHigh    float64
	BarLow     float64
	Reason     string // exit action code
	TS         time.Time
	DecisionID string
}

// CloseResult reports the simulated exit fill and realized P&L
type CloseResult struct {
	FillPrice float64
	SlipBps   float64
	Fees      float64
	PnL       float64
}

// CloseTrade fills an exit and finalises the round trip atomically.
// Realized P&L is the signed price move times quantity net of both legs'
// fees.
func (b *Broker) CloseTrade(ctx context.Context, p CloseParams) (*CloseResult, error) {
	pos := p.Position
	open, err := b.store.GetOpenTrade(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, fmt.Errorf("no open trade to close for %s", pos.Symbol)
	}

	slip := SlippageBps(p.BarHigh, p.BarLow, p.RefPrice, b.cfg.MinSlipBps, b.cfg.SlipRangeK)
	// Closing a long sells; closing a short buys back
	buy := pos.Side == signal.SideShort
	fill := FillPrice(p.RefPrice, slip, buy)
	exitFees := fill * pos.Qty * b.cfg.FeeBps / 10000

	sideSign := 1.0
	if pos.Side == signal.SideShort {
		sideSign = -1.0
	}
	pnl := (fill-open.EntryPrice)*pos.Qty*sideSign - open.Fees - exitFees

	err = b.store.CloseTrade(ctx, db.CloseTradeParams{
		Symbol:      pos.Symbol,
		ExitPrice:   fill,
		ExitTS:      p.TS,
		ExitFees:    exitFees,
		ExitSlipBps: slip,
		PnL:         pnl,
		ExitReason:  p.Reason,
		DecisionID:  p.DecisionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record close trade: %w", err)
	}

	b.log.Info().
		Str("symbol", pos.Symbol).
		Str("reason", p.Reason).
		Str("decision_id", p.DecisionID).
		Float64("fill", fill).
		Float64("pnl", pnl).
		Msg("closed paper trade")

	return &CloseResult{
		FillPrice: fill,
		SlipBps:   slip,
		Fees:      exitFees,
		PnL:       pnl,
	}, nil
}
