package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantline/papertrader/internal/exchange"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestUpsertCandlesAtomic(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	candles := []exchange.Candle{
		{TS: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{TS: ts.Add(5 * time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO candles").
		WithArgs("BTC/USD", "5m", ts, 100.0, 101.0, 99.0, 100.5, 10.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO candles").
		WithArgs("BTC/USD", "5m", ts.Add(5*time.Minute), 100.5, 102.0, 100.0, 101.5, 12.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertCandles(context.Background(), "BTC/USD", "5m", candles))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCandlesEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	require.NoError(t, store.UpsertCandles(context.Background(), "BTC/USD", "5m", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandlesAscending(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT ts, open, high, low, close, volume").
		WithArgs("BTC/USD", "5m", 2).
		WillReturnRows(pgxmock.NewRows([]string{"ts", "open", "high", "low", "close", "volume"}).
			AddRow(ts, 100.0, 101.0, 99.0, 100.5, 10.0).
			AddRow(ts.Add(5*time.Minute), 100.5, 102.0, 100.0, 101.5, 12.0))

	candles, err := store.GetCandles(context.Background(), "BTC/USD", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].TS.Before(candles[1].TS))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCandleTSEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT ts FROM candles").
		WithArgs("BTC/USD", "5m").
		WillReturnError(pgx.ErrNoRows)

	ts, err := store.LatestCandleTS(context.Background(), "BTC/USD", "5m")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestGetPositionFlat(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM positions WHERE symbol").
		WithArgs("BTC/USD").
		WillReturnError(pgx.ErrNoRows)

	pos, err := store.GetPosition(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Nil(t, pos, "flat symbol returns nil, not an error")
}

func TestUpdatePositionStateMissingPosition(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE positions").
		WithArgs("BTC/USD", 99.5, 101.0, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdatePositionState(context.Background(), "BTC/USD", 99.5, 101.0, 3)
	assert.ErrorContains(t, err, "no open position")
}

func TestUpdatePeakNAVMonotone(t *testing.T) {
	store, mock := newMockStore(t)

	// New high raises the stored peak
	mock.ExpectQuery("SELECT value FROM config").
		WithArgs(KeyPeakNAV).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("10000")))
	mock.ExpectExec("INSERT INTO config").
		WithArgs(KeyPeakNAV, []byte("10500")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	peak, err := store.UpdatePeakNAV(context.Background(), 10500)
	require.NoError(t, err)
	assert.Equal(t, 10500.0, peak)

	// A drawdown never lowers it
	mock.ExpectQuery("SELECT value FROM config").
		WithArgs(KeyPeakNAV).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("10500")))

	peak, err = store.UpdatePeakNAV(context.Background(), 9800)
	require.NoError(t, err)
	assert.Equal(t, 10500.0, peak)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsPausedDefaultsFalse(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM config").
		WithArgs(PauseKey("BTC/USD")).
		WillReturnError(pgx.ErrNoRows)

	paused, err := store.IsPaused(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestGetEventsFilters(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM event_log WHERE 1=1 AND tag = .* AND decision_id").
		WithArgs("TRADE", "d0000000-0000-0000-0000-000000000000", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "ts", "level", "tag", "action",
			"symbol", "decision_id", "payload"}).
			AddRow(int64(7), ts, "info", "TRADE", "OPEN_LONG",
				"BTC/USD", "d0000000-0000-0000-0000-000000000000", []byte(`{"qty":1}`)))

	events, err := store.GetEvents(context.Background(), EventFilter{
		Tag:        "TRADE",
		DecisionID: "d0000000-0000-0000-0000-000000000000",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "OPEN_LONG", events[0].Action)
	assert.JSONEq(t, `{"qty":1}`, string(events[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseTradeWithoutOpenTradeFails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trades").
		WithArgs("BTC/USD", 99.0, pgxmock.AnyArg(), 0.02, 3.0, -1.5, "EXIT_STOP").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.CloseTrade(context.Background(), CloseTradeParams{
		Symbol:      "BTC/USD",
		ExitPrice:   99.0,
		ExitTS:      time.Now(),
		ExitFees:    0.02,
		ExitSlipBps: 3.0,
		PnL:         -1.5,
		ExitReason:  "EXIT_STOP",
	})
	assert.ErrorContains(t, err, "no open trade")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumRealizedPnL(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`COALESCE\(SUM\(pnl\), 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow(-12.5))

	total, err := store.SumRealizedPnL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -12.5, total)
}

func TestInsertEventNullables(t *testing.T) {
	store, mock := newMockStore(t)

	// Empty decision id and payload land as NULLs
	mock.ExpectExec("INSERT INTO event_log").
		WithArgs(pgxmock.AnyArg(), "info", "CYCLE", "CYCLE_START", "", nil, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.InsertEvent(context.Background(), EventRecord{
		TS:     time.Now().UTC(),
		Level:  "info",
		Tag:    "CYCLE",
		Action: "CYCLE_START",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
