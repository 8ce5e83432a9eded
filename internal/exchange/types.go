package exchange

import (
	"fmt"
	"strings"
	"time"
)

// Candle is one closed OHLCV bar. TS is the bar open time in UTC.
type Candle struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TimeframeDuration converts a timeframe string to a duration
func TimeframeDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1d":
		return 24 * time.Hour, nil
	default:
		d, err := time.ParseDuration(tf)
		if err != nil {
			return 0, fmt.Errorf("unsupported timeframe %q: %w", tf, err)
		}
		return d, nil
	}
}

// NormalizeSymbol converts BASE/QUOTE form to the exchange's native symbol.
// Binance spot has no USD pairs, so USD maps to USDT.
func NormalizeSymbol(symbol string) string {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return strings.ToUpper(symbol)
	}
	base, quote := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}
