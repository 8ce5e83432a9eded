package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quantline/papertrader/internal/config"
)

// BinanceAdapter fetches public klines from Binance. No API key is
// needed; the public data endpoints serve unauthenticated requests.
type BinanceAdapter struct {
	client  *binance.Client
	limiter *rate.Limiter
	retry   RetryConfig
	log     zerolog.Logger
}

// NewBinanceAdapter creates a public-data Binance adapter.
// The limiter stays well under Binance's 1200 weight/min budget.
func NewBinanceAdapter() *BinanceAdapter {
	return &BinanceAdapter{
		client:  binance.NewClient("", ""),
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		retry:   DefaultRetryConfig(),
		log:     config.NewLogger("exchange.binance"),
	}
}

// Name returns the exchange identifier
func (b *BinanceAdapter) Name() string { return "binance" }

// FetchOHLCV returns the most recent closed candles, ascending by time
func (b *BinanceAdapter) FetchOHLCV(ctx context.Context, symbol, tf string, limit int) ([]Candle, error) {
	// Fetch one extra: the newest kline is the still-forming bar
	return b.fetchKlines(ctx, symbol, tf, nil, limit+1)
}

// FetchOHLCVSince returns closed candles with open time >= since
func (b *BinanceAdapter) FetchOHLCVSince(ctx context.Context, symbol, tf string, since time.Time, limit int) ([]Candle, error) {
	return b.fetchKlines(ctx, symbol, tf, &since, limit)
}

// LatestPrice returns the current ticker price
func (b *BinanceAdapter) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	native := NormalizeSymbol(symbol)
	var prices []*binance.SymbolPrice
	err := WithRetry(ctx, b.retry, func() error {
		var callErr error
		prices, callErr = b.client.NewListPricesService().Symbol(native).Do(ctx)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

func (b *BinanceAdapter) fetchKlines(ctx context.Context, symbol, tf string, since *time.Time, limit int) ([]Candle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	native := NormalizeSymbol(symbol)
	svc := b.client.NewKlinesService().Symbol(native).Interval(tf).Limit(limit)
	if since != nil {
		svc = svc.StartTime(since.UnixMilli())
	}

	var klines []*binance.Kline
	err := WithRetry(ctx, b.retry, func() error {
		var callErr error
		klines, callErr = svc.Do(ctx)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s %s: %w", symbol, tf, err)
	}

	tfDur, err := TimeframeDuration(tf)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(k)
		if err != nil {
			return nil, fmt.Errorf("failed to convert kline for %s: %w", symbol, err)
		}
		// Drop the still-forming bar
		if !c.TS.Add(tfDur).After(now) {
			candles = append(candles, c)
		}
	}

	b.log.Debug().
		Str("symbol", symbol).
		Str("tf", tf).
		Int("bars", len(candles)).
		Msg("fetched klines")

	return candles, nil
}

func convertKline(k *binance.Kline) (Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad low %q: %w", k.Low, err)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad volume %q: %w", k.Volume, err)
	}

	return Candle{
		TS:     time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}, nil
}
