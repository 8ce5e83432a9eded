package indicators

import (
	"math"

	"github.com/quantline/papertrader/internal/exchange"
)

// Donchian returns the channel over the prior period bars, exclusive of
// the current bar: upper[i] = max(high[i-period .. i-1]). The exclusion
// is what lets a breakout close pierce the channel it is compared to.
func Donchian(candles []exchange.Candle, period int) (upper, lower []float64) {
	upper = nanSlice(len(candles))
	lower = nanSlice(len(candles))

	for i := period; i < len(candles); i++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for j := i - period; j < i; j++ {
			hi = math.Max(hi, candles[j].High)
			lo = math.Min(lo, candles[j].Low)
		}
		upper[i] = hi
		lower[i] = lo
	}
	return upper, lower
}
