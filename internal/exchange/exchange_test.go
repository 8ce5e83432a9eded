package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"BTC/USD", "BTCUSDT"},
		{"ETH/USDT", "ETHUSDT"},
		{"SOL/USD", "SOLUSDT"},
		{"btc/usd", "BTCUSDT"},
		{"BTCUSDT", "BTCUSDT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSymbol(tt.in))
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, err := TimeframeDuration("5m")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = TimeframeDuration("1d")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	_, err = TimeframeDuration("bogus")
	assert.Error(t, err)
}

func TestWithRetrySucceedsAfterTransientErrors(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}

	attempts := 0
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	attempts := 0
	permanent := errors.New("invalid symbol")
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:     10,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, cfg, func() error {
		return errors.New("rate limit exceeded")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("too many requests")))
	assert.True(t, IsRetryable(errors.New("HTTP status=503")))
	assert.False(t, IsRetryable(errors.New("invalid interval")))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(nil))
}

func TestNewAdapterResolvesByName(t *testing.T) {
	a, err := NewAdapter("binance")
	require.NoError(t, err)
	assert.Equal(t, "binance", a.Name())

	a, err = NewAdapter("Mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", a.Name())

	_, err = NewAdapter("kraken")
	assert.Error(t, err)
}

func TestMockAdapterServesCandles(t *testing.T) {
	m := NewMockAdapter()
	base := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	series := make([]Candle, 10)
	for i := range series {
		series[i] = Candle{
			TS:     base.Add(time.Duration(i) * 5 * time.Minute),
			Open:   100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	m.SetCandles("BTC/USD", series)

	got, err := m.FetchOHLCV(context.Background(), "BTC/USD", "5m", 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, series[6].TS, got[0].TS)

	since, err := m.FetchOHLCVSince(context.Background(), "BTC/USD", "5m", series[8].TS, 100)
	require.NoError(t, err)
	assert.Len(t, since, 2)

	price, err := m.LatestPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 100.5, price)

	_, err = m.FetchOHLCV(context.Background(), "XRP/USD", "5m", 4)
	assert.Error(t, err)
}
