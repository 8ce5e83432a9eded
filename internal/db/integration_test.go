//go:build integration

package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantline/papertrader/internal/db"
	"github.com/quantline/papertrader/internal/db/testhelpers"
	"github.com/quantline/papertrader/internal/exchange"
)

func setupStore(t *testing.T) *db.Store {
	t.Helper()
	tc := testhelpers.SetupTestDatabase(t)
	return db.NewStore(tc.Pool)
}

func TestCandleRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	candles := []exchange.Candle{
		{TS: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{TS: start.Add(5 * time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12},
		{TS: start.Add(10 * time.Minute), Open: 101.5, High: 103, Low: 101, Close: 102.5, Volume: 14},
	}
	require.NoError(t, store.UpsertCandles(ctx, "BTC/USD", "5m", candles))

	// Re-upserting an amended bar overwrites rather than duplicating
	candles[2].Close = 102.0
	require.NoError(t, store.UpsertCandles(ctx, "BTC/USD", "5m", candles[2:]))

	got, err := store.GetCandles(ctx, "BTC/USD", "5m", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 102.0, got[2].Close)

	latest, err := store.LatestCandleTS(ctx, "BTC/USD", "5m")
	require.NoError(t, err)
	assert.True(t, latest.Equal(start.Add(10*time.Minute)))

	n, err := store.CountCandles(ctx, "BTC/USD", "5m")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTradeLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	entryTS := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	decisionID := uuid.NewString()

	trade := db.Trade{
		ID:          uuid.NewString(),
		Symbol:      "BTC/USD",
		Side:        "long",
		Qty:         0.5,
		EntryPrice:  100.03,
		EntryTS:     entryTS,
		Fees:        0.01,
		SlippageBps: 3.0,
		DecisionID:  decisionID,
		Rationale:   []byte(`{"rationale":"breakout"}`),
	}
	pos := db.Position{
		Symbol:       "BTC/USD",
		Side:         "long",
		Qty:          0.5,
		EntryPrice:   100.03,
		StopPrice:    98.0,
		EntryTS:      entryTS,
		ExtremeClose: 100.0,
		DecisionID:   decisionID,
	}
	require.NoError(t, store.OpenTrade(ctx, trade, pos))

	// Exactly one open trade pairs with the position row
	n, err := store.CountOpenTrades(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gotPos, err := store.GetPosition(ctx, "BTC/USD")
	require.NoError(t, err)
	require.NotNil(t, gotPos)
	assert.Equal(t, decisionID, gotPos.DecisionID)
	assert.Zero(t, gotPos.BarsHeld)

	require.NoError(t, store.UpdatePositionState(ctx, "BTC/USD", 99.0, 101.0, 2))
	gotPos, err = store.GetPosition(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 99.0, gotPos.StopPrice)
	assert.Equal(t, 2, gotPos.BarsHeld)

	require.NoError(t, store.CloseTrade(ctx, db.CloseTradeParams{
		Symbol:      "BTC/USD",
		ExitPrice:   99.0,
		ExitTS:      entryTS.Add(time.Hour),
		ExitFees:    0.01,
		ExitSlipBps: 5.0,
		PnL:         -0.535,
		ExitReason:  "EXIT_STOP",
		DecisionID:  decisionID,
	}))

	// The round trip leaves the symbol flat with the ledger settled
	gotPos, err = store.GetPosition(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Nil(t, gotPos)

	n, err = store.CountOpenTrades(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Zero(t, n)

	closed, err := store.GetTradeWithRationale(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, "closed", closed.Status)
	assert.InDelta(t, 0.02, closed.Fees, 1e-9, "fees accumulate across legs")
	assert.InDelta(t, 4.0, closed.SlippageBps, 1e-9, "slippage is the mean of both legs")
	require.NotNil(t, closed.PnL)
	assert.InDelta(t, -0.535, *closed.PnL, 1e-9)
	assert.JSONEq(t, `{"rationale":"breakout"}`, string(closed.Rationale))

	total, err := store.SumRealizedPnL(ctx)
	require.NoError(t, err)
	assert.InDelta(t, -0.535, total, 1e-9)
}

func TestConfigAndPeakNAV(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	initial, err := store.GetConfigFloat(ctx, db.KeyInitialNAV, 10000)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, initial, "missing key falls back to the default")

	require.NoError(t, store.SetConfigValue(ctx, db.KeyInitialNAV, 25000.0))
	initial, err = store.GetConfigFloat(ctx, db.KeyInitialNAV, 10000)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, initial)

	peak, err := store.UpdatePeakNAV(ctx, 26000)
	require.NoError(t, err)
	assert.Equal(t, 26000.0, peak)

	peak, err = store.UpdatePeakNAV(ctx, 24000)
	require.NoError(t, err)
	assert.Equal(t, 26000.0, peak, "the peak never decreases")

	paused, err := store.IsPaused(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.False(t, paused)
	require.NoError(t, store.SetPaused(ctx, "BTC/USD", true))
	paused, err = store.IsPaused(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestEventLogByDecision(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	decisionID := uuid.NewString()

	for _, action := range []string{"CYCLE_START", "REGIME_TREND", "OPEN_LONG"} {
		require.NoError(t, store.InsertEvent(ctx, db.EventRecord{
			TS:         time.Now().UTC(),
			Level:      "info",
			Tag:        "TRADE",
			Action:     action,
			Symbol:     "BTC/USD",
			DecisionID: decisionID,
			Payload:    []byte(`{"n":1}`),
		}))
	}
	require.NoError(t, store.InsertEvent(ctx, db.EventRecord{
		TS:     time.Now().UTC(),
		Level:  "info",
		Tag:    "CYCLE",
		Action: "CYCLE_END",
	}))

	// The whole decision reconstructs from its id alone
	events, err := store.GetEvents(ctx, db.EventFilter{DecisionID: decisionID})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = store.GetEvents(ctx, db.EventFilter{Tag: "CYCLE"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "CYCLE_END", events[0].Action)
	assert.Empty(t, events[0].DecisionID)
}

func TestNAVAndSentimentRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertNAV(ctx, db.NAVSnapshot{
		TS: ts, NAV: 10100, Cash: 9900, PositionsValue: 200,
		RealizedPnL: 50, UnrealizedPnL: 50, DrawdownPct: 0.01,
	}))
	// A re-run of the same cycle overwrites the snapshot
	require.NoError(t, store.InsertNAV(ctx, db.NAVSnapshot{
		TS: ts, NAV: 10150, Cash: 9950, PositionsValue: 200,
		RealizedPnL: 100, UnrealizedPnL: 50, DrawdownPct: 0.0,
	}))

	latest, err := store.LatestNAV(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 10150.0, latest.NAV)

	require.NoError(t, store.UpsertSentiment(ctx, db.SentimentRecord{
		Symbol: "BTC/USD", TS: ts, Sent24h: 0.4, Sent7d: 0.2, Trend: 0.2,
		Burst: 0.1, Sources: []string{"search-llm"},
	}))
	require.NoError(t, store.UpsertSentiment(ctx, db.SentimentRecord{
		Symbol: "BTC/USD", TS: ts, Sent24h: 0.5, Sent7d: 0.2, Trend: 0.3,
		Burst: 0.1, Sources: []string{"search-llm"},
	}))

	snap, err := store.LatestSentiment(ctx, "BTC/USD")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0.5, snap.Sent24h)
	assert.Equal(t, 0.3, snap.Trend)
	assert.Equal(t, []string{"search-llm"}, snap.Sources)
}
