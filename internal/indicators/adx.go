package indicators

import (
	"math"

	"github.com/quantline/papertrader/internal/exchange"
)

// ADX returns the Wilder average directional index. Directional movement
// and true range are Wilder-accumulated from index 1; DX becomes valid at
// index period and ADX at index 2*period-1 (mean of the first period DX
// values, then Wilder-smoothed).
func ADX(candles []exchange.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) < 2*period {
		return out
	}

	n := len(candles)
	tr := TrueRange(candles)
	dmPlus := make([]float64, n)
	dmMinus := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low
		if upMove > downMove && upMove > 0 {
			dmPlus[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			dmMinus[i] = downMove
		}
	}

	// Wilder running sums, seeded over bars 1..period
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += dmPlus[i]
		smMinus += dmMinus[i]
	}

	dx := nanSlice(n)
	dx[period] = dxValue(smPlus, smMinus, smTR)

	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + dmPlus[i]
		smMinus = smMinus - smMinus/float64(period) + dmMinus[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	// Seed ADX with the mean of the first period DX values
	var seed float64
	for i := period; i < 2*period; i++ {
		seed += dx[i]
	}
	seed /= float64(period)
	out[2*period-1] = seed

	prev := seed
	for i := 2 * period; i < n; i++ {
		prev = (prev*float64(period-1) + dx[i]) / float64(period)
		out[i] = prev
	}
	return out
}

func dxValue(smPlus, smMinus, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	diPlus := 100 * smPlus / smTR
	diMinus := 100 * smMinus / smTR
	sum := diPlus + diMinus
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(diPlus-diMinus) / sum
}
