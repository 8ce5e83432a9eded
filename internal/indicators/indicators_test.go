package indicators

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantline/papertrader/internal/exchange"
)

func flatCandles(n int, price float64, start time.Time) []exchange.Candle {
	out := make([]exchange.Candle, n)
	for i := range out {
		out[i] = exchange.Candle{
			TS:     start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 10,
		}
	}
	return out
}

var t0 = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2, got[2], 1e-12)
	assert.InDelta(t, 3, got[3], 1e-12)
	assert.InDelta(t, 4, got[4], 1e-12)
}

func TestEMASeededWithSMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[1]))
	// Seed = SMA(1,2,3) = 2; alpha = 0.5
	assert.InDelta(t, 2, got[2], 1e-12)
	assert.InDelta(t, 3, got[3], 1e-12)
	assert.InDelta(t, 4, got[4], 1e-12)
}

func TestEMAConstantSeries(t *testing.T) {
	values := make([]float64, 250)
	for i := range values {
		values[i] = 42
	}
	got := EMA(values, 200)
	assert.True(t, math.IsNaN(got[198]))
	assert.InDelta(t, 42, got[199], 1e-12)
	assert.InDelta(t, 42, got[249], 1e-12)
}

func TestWMA(t *testing.T) {
	got := WMA([]float64{1, 2, 3}, 3)
	// (1*1 + 2*2 + 3*3) / 6
	assert.InDelta(t, 14.0/6.0, got[2], 1e-12)
}

func TestROC(t *testing.T) {
	values := []float64{100, 0, 0, 0, 0, 0, 0, 0, 0, 0, 110}
	got := ROC(values, 10)
	assert.True(t, math.IsNaN(got[9]))
	assert.InDelta(t, 10, got[10], 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	rsi := RSI(rising, 14)
	assert.True(t, math.IsNaN(rsi[13]))
	assert.InDelta(t, 100, rsi[14], 1e-9)

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	rsi = RSI(flat, 14)
	assert.InDelta(t, 50, rsi[20], 1e-9)
}

func TestATRFlatRange(t *testing.T) {
	candles := flatCandles(40, 100, t0)
	atr := ATR(candles, 14)
	assert.True(t, math.IsNaN(atr[13]))
	// Every true range is exactly 2
	assert.InDelta(t, 2, atr[14], 1e-12)
	assert.InDelta(t, 2, atr[39], 1e-12)
}

func TestBollingerConstant(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 100
	}
	mid, upper, lower := Bollinger(values, 20, 2)
	assert.InDelta(t, 100, mid[24], 1e-12)
	assert.InDelta(t, 100, upper[24], 1e-12)
	assert.InDelta(t, 100, lower[24], 1e-12)
}

func TestDonchianExcludesCurrentBar(t *testing.T) {
	candles := flatCandles(30, 100, t0)
	// Spike the last bar far above the channel
	candles[29].High = 500
	candles[29].Close = 499

	upper, lower := Donchian(candles, 20)
	assert.True(t, math.IsNaN(upper[19]))
	// The current bar's spike must not raise its own channel
	assert.InDelta(t, 101, upper[29], 1e-12)
	assert.InDelta(t, 99, lower[29], 1e-12)
	// The next bar would see it
	candles = append(candles, flatCandles(1, 100, t0.Add(30*5*time.Minute))[0])
	upper, _ = Donchian(candles, 20)
	assert.InDelta(t, 500, upper[30], 1e-12)
}

func TestOBV(t *testing.T) {
	candles := flatCandles(4, 100, t0)
	candles[1].Close = 101 // up
	candles[2].Close = 100 // down
	candles[3].Close = 100 // flat

	obv := OBV(candles)
	assert.Equal(t, 0.0, obv[0])
	assert.Equal(t, 10.0, obv[1])
	assert.Equal(t, 0.0, obv[2])
	assert.Equal(t, 0.0, obv[3])
}

func TestCMFCloseAtHigh(t *testing.T) {
	candles := flatCandles(25, 100, t0)
	for i := range candles {
		candles[i].Close = candles[i].High // full accumulation
	}
	cmf := CMF(candles, 20)
	assert.True(t, math.IsNaN(cmf[18]))
	assert.InDelta(t, 1, cmf[24], 1e-12)
}

func TestRVOLConstantVolume(t *testing.T) {
	candles := flatCandles(30, 100, t0)
	rvol := RVOL(candles, 20)
	assert.InDelta(t, 1, rvol[25], 1e-12)

	candles[29].Volume = 30 // 3x the 10-per-bar baseline
	rvol = RVOL(candles, 20)
	assert.Greater(t, rvol[29], 1.5)
}

func TestADXStrongTrend(t *testing.T) {
	candles := make([]exchange.Candle, 60)
	for i := range candles {
		p := 100 + float64(i)*2
		candles[i] = exchange.Candle{
			TS: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10,
		}
	}
	adx := ADX(candles, 14)
	assert.True(t, math.IsNaN(adx[26]))
	require.False(t, math.IsNaN(adx[27]))
	// Pure one-directional movement drives DX to 100
	assert.InDelta(t, 100, adx[40], 1e-6)
}

func TestSessionVWAPResetsAtMidnight(t *testing.T) {
	// Two bars before midnight, two after
	start := time.Date(2026, 8, 23, 23, 50, 0, 0, time.UTC)
	candles := flatCandles(4, 100, start)
	candles[2].High, candles[2].Low, candles[2].Close = 201, 199, 200
	candles[3].High, candles[3].Low, candles[3].Close = 201, 199, 200

	vwap := SessionVWAP(candles)
	assert.InDelta(t, 100, vwap[1], 1e-12)
	// New UTC day: accumulation restarts at the 200 level
	assert.InDelta(t, 200, vwap[2], 1e-12)
	assert.InDelta(t, 200, vwap[3], 1e-12)
}

func TestAnchoredVWAPReAnchorsOnBreakout(t *testing.T) {
	candles := flatCandles(40, 100, t0)
	// Breakout at bar 30: close above the prior-20-bar high of 101
	candles[30].High, candles[30].Low, candles[30].Close = 121, 119, 120

	upper, _ := Donchian(candles, 20)
	avwap := AnchoredVWAP(candles, upper)

	session := SessionVWAP(candles)
	// Before the first anchor the session VWAP is served
	assert.InDelta(t, session[29], avwap[29], 1e-12)
	// Anchor bar: accumulation restarts at its typical price
	assert.InDelta(t, 120, avwap[30], 1e-12)
	// Subsequent flat bars pull it back toward 100
	assert.Less(t, avwap[35], 120.0)
	assert.Greater(t, avwap[35], 100.0)
}

func TestComputeFullLengthAndDeterministic(t *testing.T) {
	candles := make([]exchange.Candle, 250)
	for i := range candles {
		p := 100 + math.Sin(float64(i)/10)*5
		candles[i] = exchange.Candle{
			TS: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10 + float64(i%7),
		}
	}

	rows, err := Compute(candles)
	require.NoError(t, err)
	require.Len(t, rows, len(candles))

	// Lead-in NaNs where lookbacks are unsatisfied
	assert.True(t, math.IsNaN(rows[100].EMA200))
	assert.False(t, math.IsNaN(rows[199].EMA200))
	assert.True(t, math.IsNaN(rows[19].DonchUpper))
	assert.False(t, math.IsNaN(rows[20].DonchUpper))

	// Bit-identical re-run. NaN never compares equal to itself, so the
	// lead-in rows are compared through their printed form.
	again, err := Compute(candles)
	require.NoError(t, err)
	for i := range rows {
		assert.Equal(t, fmt.Sprintf("%+v", rows[i]), fmt.Sprintf("%+v", again[i]))
	}
}

func TestComputeRejectsUnorderedCandles(t *testing.T) {
	candles := flatCandles(5, 100, t0)
	candles[3].TS = candles[2].TS
	_, err := Compute(candles)
	assert.Error(t, err)
}
