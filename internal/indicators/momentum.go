package indicators

import "math"

// RSI returns the Wilder relative strength index. The first value sits
// at index period, seeded from the simple mean of the first period
// gains/losses, then Wilder-smoothed.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// StochRSI returns %K and %D of the stochastic RSI:
// stoch over stochPeriod of RSI(rsiPeriod), %K and %D smoothed over smooth.
func StochRSI(values []float64, rsiPeriod, stochPeriod, smooth int) (k, d []float64) {
	rsi := RSI(values, rsiPeriod)

	raw := nanSlice(len(values))
	for i := range rsi {
		if i < stochPeriod-1 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		valid := true
		for j := i - stochPeriod + 1; j <= i; j++ {
			if math.IsNaN(rsi[j]) {
				valid = false
				break
			}
			lo = math.Min(lo, rsi[j])
			hi = math.Max(hi, rsi[j])
		}
		if !valid {
			continue
		}
		if hi == lo {
			raw[i] = 0
		} else {
			raw[i] = (rsi[i] - lo) / (hi - lo) * 100
		}
	}

	k = smaSkipNaN(raw, smooth)
	d = smaSkipNaN(k, smooth)
	return k, d
}

// smaSkipNaN averages over period like SMA but leaves NaN wherever any
// input in the window is NaN, preserving the lead-in of derived series.
func smaSkipNaN(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		var sum float64
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if valid {
			out[i] = sum / float64(period)
		}
	}
	return out
}
