package indicators

import (
	"math"

	"github.com/quantline/papertrader/internal/exchange"
)

// TrueRange returns the per-bar true range. The first bar has no prior
// close, so its true range is just high-low.
func TrueRange(candles []exchange.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		out[i] = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return out
}

// ATR returns the Wilder-smoothed average true range. Seeded at index
// period with the simple mean of the first period true ranges (bars
// 1..period, which have a prior close).
func ATR(candles []exchange.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) <= period {
		return out
	}

	tr := TrueRange(candles)

	var seed float64
	for i := 1; i <= period; i++ {
		seed += tr[i]
	}
	seed /= float64(period)
	out[period] = seed

	prev := seed
	for i := period + 1; i < len(candles); i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

// Bollinger returns the middle (SMA), upper, and lower bands using a
// population standard deviation over period with width stddevs.
func Bollinger(values []float64, period int, stddevs float64) (mid, upper, lower []float64) {
	mid = SMA(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		m := mid[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - m
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = m + stddevs*sd
		lower[i] = m - stddevs*sd
	}
	return mid, upper, lower
}
