package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter serves canned candles for tests and dry runs
type MockAdapter struct {
	mu      sync.RWMutex
	candles map[string][]Candle // keyed by symbol
	prices  map[string]float64
	err     error
	calls   int
}

// NewMockAdapter creates an empty mock adapter
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		candles: make(map[string][]Candle),
		prices:  make(map[string]float64),
	}
}

// Name returns the exchange identifier
func (m *MockAdapter) Name() string { return "mock" }

// SetCandles replaces the canned candle series for a symbol
func (m *MockAdapter) SetCandles(symbol string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = candles
	if len(candles) > 0 {
		m.prices[symbol] = candles[len(candles)-1].Close
	}
}

// SetPrice sets the ticker price for a symbol
func (m *MockAdapter) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetError makes every subsequent call fail with err
func (m *MockAdapter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of fetch calls made
func (m *MockAdapter) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// FetchOHLCV returns the last limit canned candles
func (m *MockAdapter) FetchOHLCV(ctx context.Context, symbol, tf string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	series, ok := m.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("no candles configured for %s", symbol)
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]Candle, len(series))
	copy(out, series)
	return out, nil
}

// FetchOHLCVSince returns canned candles at or after since
func (m *MockAdapter) FetchOHLCVSince(ctx context.Context, symbol, tf string, since time.Time, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	var out []Candle
	for _, c := range m.candles[symbol] {
		if !c.TS.Before(since) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// LatestPrice returns the configured ticker price
func (m *MockAdapter) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return 0, m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price configured for %s", symbol)
	}
	return price, nil
}
