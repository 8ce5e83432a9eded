package indicators

import (
	"github.com/quantline/papertrader/internal/exchange"
)

// OBV returns on-balance volume. Starts at zero; each bar adds volume
// when the close rises and subtracts it when the close falls.
func OBV(candles []exchange.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// CMF returns the Chaikin money flow over period bars. Bars with zero
// range contribute zero money-flow volume.
func CMF(candles []exchange.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	mfv := make([]float64, len(candles))
	for i, c := range candles {
		if c.High != c.Low {
			mult := ((c.Close - c.Low) - (c.High - c.Close)) / (c.High - c.Low)
			mfv[i] = mult * c.Volume
		}
	}

	for i := period - 1; i < len(candles); i++ {
		var mfvSum, volSum float64
		for j := i - period + 1; j <= i; j++ {
			mfvSum += mfv[j]
			volSum += candles[j].Volume
		}
		if volSum != 0 {
			out[i] = mfvSum / volSum
		} else {
			out[i] = 0
		}
	}
	return out
}

// RVOL returns relative volume: volume over its period-bar SMA
func RVOL(candles []exchange.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	avg := SMA(volumes, period)

	for i := period - 1; i < len(candles); i++ {
		if avg[i] != 0 {
			out[i] = volumes[i] / avg[i]
		}
	}
	return out
}
