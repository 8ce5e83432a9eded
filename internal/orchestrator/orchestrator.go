// Package orchestrator drives the trading cycle: ingest, features,
// signals, advisor, consultant, validation, broker, and the NAV
// snapshot, under a hard per-cycle deadline.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quantline/papertrader/internal/advisor"
	"github.com/quantline/papertrader/internal/broker"
	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/consultant"
	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/events"
	"github.com/quantline/papertrader/internal/exchange"
	"github.com/quantline/papertrader/internal/indicators"
	"github.com/quantline/papertrader/internal/metrics"
	"github.com/quantline/papertrader/internal/nav"
	"github.com/quantline/papertrader/internal/risk"
	"github.com/quantline/papertrader/internal/sentiment"
	"github.com/quantline/papertrader/internal/signal"
)

// A symbol needs this many multiples of the longest lookback before
// signals are evaluated over its history
const warmupMultiple = 3

// Deps bundles the components the orchestrator drives. Sentiment,
// Metrics, and SymbolAdapters may be nil.
type Deps struct {
	Config     *config.Config
	Store      *db.Store
	Adapter    exchange.Adapter
	Advisor    *advisor.Advisor
	Consultant *consultant.Consultant
	Sentiment  *sentiment.Service
	Metrics    *metrics.Metrics

	// SymbolAdapters overrides the default adapter per symbol, for
	// universes spread across exchanges.
	SymbolAdapters map[string]exchange.Adapter
}

// Orchestrator owns the cycle loop and all per-cycle state
type Orchestrator struct {
	cfg            *config.Config
	store          *db.Store
	adapter        exchange.Adapter
	symbolAdapters map[string]exchange.Adapter
	advisor        *advisor.Advisor
	consultant     *consultant.Consultant
	sentiment      *sentiment.Service
	validator      *risk.Validator
	killSwitch     *risk.KillSwitch
	cooldown       *signal.CooldownTracker
	broker         *broker.Broker
	sink           *events.Sink
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// New wires an orchestrator from its dependencies
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		cfg:            d.Config,
		store:          d.Store,
		adapter:        d.Adapter,
		symbolAdapters: d.SymbolAdapters,
		advisor:        d.Advisor,
		consultant:     d.Consultant,
		sentiment:      d.Sentiment,
		validator:      risk.NewValidator(d.Config.Risk),
		killSwitch:     risk.NewKillSwitch(d.Config.Risk.KillSwitchSigma, d.Config.Risk.KillSwitchBars),
		cooldown:       signal.NewCooldownTracker(),
		broker:         broker.New(d.Store, d.Config.Broker),
		sink:           events.NewSink(d.Store),
		metrics:        d.Metrics,
		log:            config.NewLogger("orchestrator"),
	}
}

// CycleSummary reports what one cycle did
type CycleSummary struct {
	DataErrors int
	Signals    int
	Opens      int
	Closes     int
	Rejects    int
	NAV        float64
	Duration   time.Duration
}

// symbolResult is the per-symbol outcome folded into the summary
type symbolResult struct {
	dataError bool
	signaled  bool
	opened    bool
	closed    bool
	rejected  bool
	lastClose float64
}

// RunForever runs cycles on the configured cadence until ctx is done
func (o *Orchestrator) RunForever(ctx context.Context) error {
	interval := o.cfg.Trading.CycleInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.log.Info().
		Dur("interval", interval).
		Strs("symbols", o.cfg.Trading.Symbols).
		Msg("starting cycle loop")

	for {
		if _, err := o.RunOnce(ctx, time.Now().UTC()); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// A failed cycle is logged and the loop continues; only
			// shutdown stops the daemon
			o.log.Error().Err(err).Msg("cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce executes one full cycle at the given wall time. Symbols run
// concurrently; the NAV snapshot is serialized after all of them finish.
func (o *Orchestrator) RunOnce(ctx context.Context, now time.Time) (CycleSummary, error) {
	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, o.cfg.Trading.CycleInterval())
	defer cancel()

	o.sink.Info(cycleCtx, events.TagCycle, events.ActionCycleStart, "", "", map[string]any{
		"symbols": o.cfg.Trading.Symbols,
		"ts":      now,
	})

	var (
		mu      sync.Mutex
		marks   = make(map[string]float64)
		summary CycleSummary
	)

	g, gctx := errgroup.WithContext(cycleCtx)
	for _, symbol := range o.cfg.Trading.Symbols {
		g.Go(func() error {
			res := o.runSymbol(gctx, symbol, now)

			mu.Lock()
			defer mu.Unlock()
			if res.lastClose > 0 {
				marks[symbol] = res.lastClose
			}
			if res.dataError {
				summary.DataErrors++
			}
			if res.signaled {
				summary.Signals++
			}
			if res.opened {
				summary.Opens++
			}
			if res.closed {
				summary.Closes++
			}
			if res.rejected {
				summary.Rejects++
			}
			return nil
		})
	}
	_ = g.Wait()

	// One bar elapsed for every cooldown and kill-switch counter
	o.cooldown.Tick()
	o.killSwitch.Tick()

	navValue, err := o.snapshotNAV(cycleCtx, now, marks)
	if err != nil {
		o.log.Error().Err(err).Msg("nav snapshot failed")
		o.stageError("nav")
	}
	summary.NAV = navValue
	summary.Duration = time.Since(start)

	if cycleCtx.Err() != nil && ctx.Err() == nil {
		o.sink.Warn(ctx, events.TagCycle, events.ActionTimeout, "", "", map[string]any{
			"elapsed": summary.Duration.String(),
		})
		if o.metrics != nil {
			o.metrics.CycleTimeouts.Inc()
		}
	}

	o.sink.Info(ctx, events.TagCycle, events.ActionCycleEnd, "", "", summary)
	if o.metrics != nil {
		o.metrics.CycleTotal.Inc()
		o.metrics.CycleDuration.Observe(summary.Duration.Seconds())
	}

	return summary, ctx.Err()
}

// runSymbol executes the per-symbol pipeline. Every emitted event after
// ingest carries the cycle's fresh decision id.
func (o *Orchestrator) runSymbol(ctx context.Context, symbol string, now time.Time) symbolResult {
	decisionID := uuid.NewString()
	tf := o.cfg.Trading.Timeframe
	var res symbolResult

	// Ingest: fetch fresh bars, fall back to stored history on failure
	fetched, err := o.adapterFor(symbol).FetchOHLCV(ctx, symbol, tf, o.cfg.Trading.FetchLimit)
	if err != nil {
		o.sink.Warn(ctx, events.TagData, events.ActionFetchFail, symbol, decisionID, map[string]any{
			"error": err.Error(),
		})
		o.stageError("data")
		res.dataError = true
	} else if err := o.store.UpsertCandles(ctx, symbol, tf, fetched); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist candles")
		o.stageError("data")
		res.dataError = true
	}

	candles, err := o.store.GetCandles(ctx, symbol, tf, o.historyBars())
	if err != nil || len(candles) == 0 {
		o.sink.Warn(ctx, events.TagData, events.ActionFetchFail, symbol, decisionID, map[string]any{
			"error": "no stored candles",
		})
		res.dataError = true
		return res
	}

	last := candles[len(candles)-1]
	res.lastClose = last.Close

	// Staleness gate: refuse to trade on a feed that stopped updating
	tfDur, err := o.cfg.Trading.TimeframeDuration()
	if err != nil {
		tfDur = 5 * time.Minute
	}
	// Bar timestamps are open times; the latest closed bar goes stale
	// once two newer bars should have closed after it
	if now.Sub(last.TS) > 3*tfDur {
		o.sink.Warn(ctx, events.TagRisk, events.ActionStaleData, symbol, decisionID, map[string]any{
			"last_bar": last.TS,
			"age":      now.Sub(last.TS).String(),
		})
		res.dataError = true
		return res
	}

	// Warm-up gate
	if len(candles) < warmupMultiple*indicators.MaxLookback {
		o.sink.Info(ctx, events.TagFeatures, events.ActionWarmup, symbol, decisionID, map[string]any{
			"have": len(candles),
			"need": warmupMultiple * indicators.MaxLookback,
		})
		return res
	}

	features, err := indicators.Compute(candles)
	if err != nil {
		o.sink.Error(ctx, events.TagFeatures, events.ActionFetchFail, symbol, decisionID, map[string]any{
			"error": err.Error(),
		})
		o.stageError("features")
		res.dataError = true
		return res
	}
	row := features[len(features)-1]
	if err := o.store.SaveFeatures(ctx, symbol, tf, row.TS, row); err != nil {
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist features")
	}

	// Ledger invariant: a position row pairs with exactly one open trade
	pos, err := o.store.GetPosition(ctx, symbol)
	if err != nil {
		o.stageError("db")
		res.dataError = true
		return res
	}
	openTrades, err := o.store.CountOpenTrades(ctx, symbol)
	if err != nil {
		o.stageError("db")
		res.dataError = true
		return res
	}
	if risk.InvariantBreached(pos, openTrades) {
		o.sink.Error(ctx, events.TagError, events.ActionInvariant, symbol, decisionID, map[string]any{
			"open_trades":  openTrades,
			"has_position": pos != nil,
		})
		if err := o.store.SetPaused(ctx, symbol, true); err != nil {
			o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to pause symbol")
		}
		return res
	}

	paused, err := o.store.IsPaused(ctx, symbol)
	if err != nil {
		o.stageError("db")
		paused = true // fail closed
	}

	// Kill switch: recent realized vol against the 30-day daily norm
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	recent := risk.RealizedVol(closes, o.cfg.Risk.KillSwitchBars)
	baseline := risk.MedianDailyVol(candles, o.cfg.Risk.VolMedianDays)

	wasTripped := o.killSwitch.Active(symbol)
	tripped := o.killSwitch.Evaluate(symbol, recent, baseline)
	if tripped && !wasTripped {
		o.sink.Error(ctx, events.TagRisk, events.ActionKillSwitch, symbol, decisionID, map[string]any{
			"recent_vol":   recent,
			"baseline_vol": baseline,
			"sigma_mult":   o.cfg.Risk.KillSwitchSigma,
		})
		if o.metrics != nil {
			o.metrics.KillSwitchTrips.Inc()
		}
	}
	if tripped && pos != nil {
		if o.closePosition(ctx, pos, row, row.Close, events.ActionExitKill, decisionID) {
			res.closed = true
			pos = nil
		}
	}

	// Manage the open position before looking for entries
	if pos != nil {
		dec := signal.ManageExit(pos, row, signal.ExitConfig{
			TrailATRMult: o.cfg.Risk.TrailATRMult,
			TimeStopBars: o.cfg.Risk.TimeStopBars,
		})
		switch dec.Action {
		case signal.ExitStop:
			if o.closePosition(ctx, pos, row, dec.ExitPrice, events.ActionExitStop, decisionID) {
				o.cooldown.RecordStopOut(symbol, o.cfg.Risk.CooldownBars)
				res.closed = true
				pos = nil
			}
		case signal.ExitTime:
			if o.closePosition(ctx, pos, row, dec.ExitPrice, events.ActionExitTime, decisionID) {
				res.closed = true
				pos = nil
			}
		default:
			err := o.store.UpdatePositionState(ctx, symbol, dec.NewStop, dec.NewExtreme, dec.NewBarsHeld)
			if err != nil {
				o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to update position state")
				o.stageError("db")
			}
		}
	}

	// Regime and entry signal
	regime := signal.ClassifyRegime(row)
	regimeAction := events.ActionRegimeChop
	if regime == signal.RegimeTrend {
		regimeAction = events.ActionRegimeTrend
	}
	o.sink.Info(ctx, events.TagSignal, regimeAction, symbol, decisionID, map[string]any{
		"adx_14":  row.ADX14,
		"ema_50":  row.EMA50,
		"ema_200": row.EMA200,
	})

	if pos != nil {
		return res // one position per symbol; nothing more to do
	}

	side, fired := signal.Entry(row, o.cfg.Trading.AllowShorts)
	if !fired || regime != signal.RegimeTrend {
		o.sink.Info(ctx, events.TagProposal, events.ActionSkipNoSignal, symbol, decisionID, nil)
		return res
	}
	res.signaled = true

	navValue := o.navForSizing(ctx)
	stop := signal.InitialStop(side, row.Close, row.ATR14, o.cfg.Risk.StopATRMult)
	qty := signal.Size(navValue, o.cfg.Risk.RiskPerTrade, o.cfg.Risk.MaxExposure, row.Close, stop)
	if qty <= 0 {
		o.sink.Info(ctx, events.TagProposal, events.ActionSkipNoSignal, symbol, decisionID, map[string]any{
			"reason": "size rounds to zero",
		})
		return res
	}

	var senti *db.SentimentRecord
	if o.sentiment != nil {
		snap := o.sentiment.Get(ctx, symbol, now)
		senti = &db.SentimentRecord{
			Symbol:   snap.Symbol,
			TS:       snap.TS,
			Sent24h:  snap.Sent24h,
			Sent7d:   snap.Sent7d,
			Trend:    snap.Trend,
			Burst:    snap.Burst,
			Fallback: snap.Fallback,
			Sources:  snap.Sources,
		}
		if snap.Fallback {
			o.sink.Warn(ctx, events.TagSentiment, events.ActionFallback, symbol, decisionID, map[string]any{
				"sources": snap.Sources,
			})
		}
	}

	proposal, err := o.advisor.Propose(ctx, advisor.Input{
		Symbol:       symbol,
		Row:          row,
		Regime:       regime,
		Sentiment:    senti,
		Position:     nil,
		NAV:          navValue,
		SignalSide:   side,
		ProposedQty:  qty,
		ProposedStop: stop,
	})
	if err != nil {
		o.sink.Warn(ctx, events.TagProposal, events.ActionAdvisorFail, symbol, decisionID, map[string]any{
			"error": err.Error(),
		})
		o.stageError("advisor")
		return res
	}
	o.sink.Info(ctx, events.TagProposal, events.ActionAdvisorPropose, symbol, decisionID, proposal)

	isEntry := proposal.Action == advisor.ActionEnterLong || proposal.Action == advisor.ActionEnterShort
	if !isEntry {
		return res
	}

	outcome := o.consultant.Review(ctx, proposal, consultant.Context{
		Regime:    string(regime),
		ATR:       row.ATR14,
		Sentiment: senti,
	})
	o.emitConsultant(ctx, symbol, decisionID, outcome)
	final := consultant.Apply(proposal, outcome)
	if final == nil {
		return res
	}

	reason, ok := o.validator.Validate(final, risk.Context{
		Regime:     regime,
		Position:   nil,
		NAV:        navValue,
		KillSwitch: o.killSwitch.Active(symbol),
		Cooldown:   o.cooldown.Active(symbol),
		Paused:     paused,
	})
	if !ok {
		o.sink.Warn(ctx, events.TagValidation, events.ActionValidationReject, symbol, decisionID, map[string]any{
			"reason": string(reason),
		})
		if o.metrics != nil {
			o.metrics.ValidatorReject.WithLabelValues(string(reason)).Inc()
		}
		res.rejected = true
		return res
	}
	o.sink.Info(ctx, events.TagValidation, events.ActionValidationPass, symbol, decisionID, nil)

	openSide := signal.SideLong
	openAction := events.ActionOpenLong
	if final.Action == advisor.ActionEnterShort {
		openSide = signal.SideShort
		openAction = events.ActionOpenShort
	}

	rationale, err := rationaleJSON(row, regime, senti, proposal, outcome, final)
	if err != nil {
		o.log.Warn().Err(err).Msg("rationale not marshalable")
	}
	fill, err := o.broker.OpenTrade(ctx, broker.OpenParams{
		Symbol:     symbol,
		Side:       openSide,
		Qty:        final.Qty,
		RefPrice:   row.Close,
		BarHigh:    row.High,
		BarLow:     row.Low,
		StopPrice:  final.Stop,
		TS:         row.TS,
		DecisionID: decisionID,
		Rationale:  rationale,
	})
	if err != nil {
		o.sink.Error(ctx, events.TagTrade, openAction, symbol, decisionID, map[string]any{
			"error": err.Error(),
		})
		o.stageError("broker")
		return res
	}

	o.sink.Info(ctx, events.TagTrade, openAction, symbol, decisionID, map[string]any{
		"trade_id": fill.TradeID,
		"qty":      final.Qty,
		"fill":     fill.FillPrice,
		"slip_bps": fill.SlipBps,
		"fees":     fill.Fees,
		"stop":     final.Stop,
	})
	if o.metrics != nil {
		o.metrics.TradesOpened.WithLabelValues(symbol, openSide).Inc()
	}
	res.opened = true
	return res
}

// closePosition routes an exit through the broker and emits the exit
// event. Returns whether the close succeeded.
func (o *Orchestrator) closePosition(ctx context.Context, pos *db.Position, row indicators.FeatureRow, ref float64, action, decisionID string) bool {
	result, err := o.broker.CloseTrade(ctx, broker.CloseParams{
		Position:   pos,
		RefPrice:   ref,
		BarHigh:    row.High,
		BarLow:     row.Low,
		Reason:     action,
		TS:         row.TS,
		DecisionID: decisionID,
	})
	if err != nil {
		o.log.Error().Err(err).Str("symbol", pos.Symbol).Str("reason", action).Msg("failed to close position")
		o.stageError("broker")
		return false
	}

	o.sink.Info(ctx, events.TagExit, action, pos.Symbol, decisionID, map[string]any{
		"fill":     result.FillPrice,
		"slip_bps": result.SlipBps,
		"fees":     result.Fees,
		"pnl":      result.PnL,
	})
	if o.metrics != nil {
		o.metrics.TradesClosed.WithLabelValues(pos.Symbol, action).Inc()
	}
	return true
}

// emitConsultant maps a review outcome onto its audit event
func (o *Orchestrator) emitConsultant(ctx context.Context, symbol, decisionID string, out consultant.Outcome) {
	action := events.ActionConsultantApprove
	switch {
	case out.AutoApproved:
		action = events.ActionConsultantAutoApprove
	case out.Verdict == consultant.VerdictReject:
		action = events.ActionConsultantReject
	case out.Verdict == consultant.VerdictModify:
		action = events.ActionConsultantModify
	}
	o.sink.Info(ctx, events.TagConsultant, action, symbol, decisionID, map[string]any{
		"verdict": string(out.Verdict),
		"reason":  out.Reason,
		"model":   out.Model,
	})
}

// navForSizing uses the previous cycle's snapshot, falling back to the
// cash ledger when no snapshot exists yet
func (o *Orchestrator) navForSizing(ctx context.Context) float64 {
	if snap, err := o.store.LatestNAV(ctx); err == nil && snap != nil {
		return snap.NAV
	}

	initial, err := o.store.GetConfigFloat(ctx, db.KeyInitialNAV, defaultInitialNAV)
	if err != nil {
		return defaultInitialNAV
	}
	realized, err := o.store.SumRealizedPnL(ctx)
	if err != nil {
		return initial
	}
	return initial + realized
}

const defaultInitialNAV = 10000.0

// snapshotNAV derives and persists the account valuation for this cycle
func (o *Orchestrator) snapshotNAV(ctx context.Context, now time.Time, marks map[string]float64) (float64, error) {
	initial, err := o.store.GetConfigFloat(ctx, db.KeyInitialNAV, defaultInitialNAV)
	if err != nil {
		return 0, fmt.Errorf("failed to load initial nav: %w", err)
	}
	realized, err := o.store.SumRealizedPnL(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	positions, err := o.store.GetOpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load open positions: %w", err)
	}

	// A symbol skipped this cycle still needs a mark for its position
	for _, p := range positions {
		if _, ok := marks[p.Symbol]; ok {
			continue
		}
		candles, err := o.store.GetCandles(ctx, p.Symbol, o.cfg.Trading.Timeframe, 1)
		if err != nil || len(candles) == 0 {
			return 0, fmt.Errorf("no mark available for %s", p.Symbol)
		}
		marks[p.Symbol] = candles[len(candles)-1].Close
	}

	val, err := nav.Value(initial, realized, positions, marks)
	if err != nil {
		return 0, err
	}

	peak, err := o.store.UpdatePeakNAV(ctx, val.NAV)
	if err != nil {
		return 0, fmt.Errorf("failed to update peak nav: %w", err)
	}
	dd := nav.Drawdown(val.NAV, peak)

	snap := db.NAVSnapshot{
		TS:             now.Truncate(time.Second),
		NAV:            val.NAV,
		Cash:           val.Cash,
		PositionsValue: val.PositionsValue,
		RealizedPnL:    realized,
		UnrealizedPnL:  val.Unrealized,
		DrawdownPct:    dd,
	}
	if err := o.store.InsertNAV(ctx, snap); err != nil {
		return 0, fmt.Errorf("failed to insert nav snapshot: %w", err)
	}

	o.sink.Info(ctx, events.TagCycle, events.ActionSnapshot, "", "", snap)
	if o.metrics != nil {
		o.metrics.NAV.Set(val.NAV)
		o.metrics.DrawdownPct.Set(dd)
		o.metrics.OpenPositions.Set(float64(len(positions)))
	}
	return val.NAV, nil
}

// historyBars is how many stored bars the pipeline loads: enough for the
// vol baseline or the warm-up gate, whichever is larger
func (o *Orchestrator) historyBars() int {
	tfDur, err := o.cfg.Trading.TimeframeDuration()
	if err != nil || tfDur <= 0 {
		tfDur = 5 * time.Minute
	}
	barsPerDay := int(24 * time.Hour / tfDur)
	n := o.cfg.Risk.VolMedianDays * barsPerDay
	if min := warmupMultiple * indicators.MaxLookback; n < min {
		n = min
	}
	return n
}

// adapterFor honors a per-symbol exchange override, defaulting to the
// primary adapter
func (o *Orchestrator) adapterFor(symbol string) exchange.Adapter {
	if a, ok := o.symbolAdapters[symbol]; ok {
		return a
	}
	return o.adapter
}

func (o *Orchestrator) stageError(stage string) {
	if o.metrics != nil {
		o.metrics.StageErrors.WithLabelValues(stage).Inc()
	}
}

// rationaleJSON packs the full decision record into the trade's audit
// blob: the feature snapshot the decision saw, the regime, the sentiment
// summary, both agent opinions, and the proposal that actually executed.
func rationaleJSON(row indicators.FeatureRow, regime signal.Regime, senti *db.SentimentRecord,
	proposed *advisor.Proposal, out consultant.Outcome, final *advisor.Proposal) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"indicators": row,
		"regime":     string(regime),
		"sentiment":  senti,
		"proposal":   proposed,
		"review": map[string]any{
			"verdict":       string(out.Verdict),
			"reason":        out.Reason,
			"modified_qty":  out.ModifiedQty,
			"modified_stop": out.ModifiedStop,
			"auto_approved": out.AutoApproved,
			"model":         out.Model,
		},
		"final_decision": final,
	})
}

// Backfill seeds candle history for every configured symbol before the
// first cycle, so warm-up does not wait for live ingestion.
func (o *Orchestrator) Backfill(ctx context.Context) error {
	tfDur, err := o.cfg.Trading.TimeframeDuration()
	if err != nil {
		return err
	}
	horizon := time.Now().UTC().Add(-time.Duration(o.cfg.Trading.WarmupDays) * 24 * time.Hour)
	tf := o.cfg.Trading.Timeframe

	for _, symbol := range o.cfg.Trading.Symbols {
		cursor := horizon
		if latest, err := o.store.LatestCandleTS(ctx, symbol, tf); err == nil && latest.After(cursor) {
			cursor = latest // resume from where the stored history ends
		}
		for cursor.Before(time.Now().UTC()) {
			batch, err := o.adapterFor(symbol).FetchOHLCVSince(ctx, symbol, tf, cursor, 1000)
			if err != nil {
				return fmt.Errorf("backfill %s: %w", symbol, err)
			}
			if len(batch) == 0 {
				break
			}
			if err := o.store.UpsertCandles(ctx, symbol, tf, batch); err != nil {
				return fmt.Errorf("backfill %s: %w", symbol, err)
			}
			cursor = batch[len(batch)-1].TS.Add(tfDur)
			o.log.Info().
				Str("symbol", symbol).
				Int("bars", len(batch)).
				Time("through", batch[len(batch)-1].TS).
				Msg("backfilled candles")
		}
	}
	return nil
}
