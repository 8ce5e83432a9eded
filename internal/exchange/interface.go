package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Adapter fetches public market data from an exchange. Only closed bars
// are returned; the currently-forming bar is dropped by implementations.
type Adapter interface {
	// FetchOHLCV returns up to limit of the most recent closed candles,
	// ascending by time.
	FetchOHLCV(ctx context.Context, symbol, tf string, limit int) ([]Candle, error)

	// FetchOHLCVSince returns closed candles with open time >= since,
	// ascending by time. Used by warm-up backfill.
	FetchOHLCVSince(ctx context.Context, symbol, tf string, since time.Time, limit int) ([]Candle, error)

	// LatestPrice returns the current ticker price
	LatestPrice(ctx context.Context, symbol string) (float64, error)

	// Name returns the exchange identifier
	Name() string
}

// NewAdapter resolves a configured exchange id to its adapter. "mock"
// serves development runs without network access.
func NewAdapter(name string) (Adapter, error) {
	switch strings.ToLower(name) {
	case "binance":
		return NewBinanceAdapter(), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", name)
	}
}
