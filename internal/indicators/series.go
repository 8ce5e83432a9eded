// Package indicators computes the technical feature battery over closed
// bars. Every function returns a series of the same length as its input,
// with NaN in positions where the lookback is not yet satisfied, so a
// given input always produces bit-identical output.
package indicators

import "math"

// SMA returns the simple moving average over period bars
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(period+1),
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// WMA returns the linearly weighted moving average (weights 1..period)
func WMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(values); i++ {
		var acc float64
		for j := 0; j < period; j++ {
			acc += values[i-period+1+j] * float64(j+1)
		}
		out[i] = acc / denom
	}
	return out
}

// HMA returns the Hull moving average:
// WMA(2*WMA(period/2) - WMA(period), sqrt(period))
func HMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}

	half := WMA(values, period/2)
	full := WMA(values, period)

	diff := nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(half[i]) && !math.IsNaN(full[i]) {
			diff[i] = 2*half[i] - full[i]
		}
	}

	sqrtP := int(math.Round(math.Sqrt(float64(period))))
	// The diff series has a NaN lead-in; run the final WMA over the
	// valid suffix and stitch the result back at the right offset.
	start := period - 1
	if start >= len(diff) {
		return out
	}
	tail := WMA(diff[start:], sqrtP)
	for i, v := range tail {
		out[start+i] = v
	}
	return out
}

// ROC returns the rate of change in percent over period bars
func ROC(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period; i < len(values); i++ {
		if values[i-period] != 0 {
			out[i] = (values[i]/values[i-period] - 1) * 100
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
