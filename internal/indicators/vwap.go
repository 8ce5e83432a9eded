package indicators

import (
	"math"

	"github.com/quantline/papertrader/internal/exchange"
)

// SessionVWAP returns the volume-weighted average price of typical
// prices, resetting at each UTC midnight.
func SessionVWAP(candles []exchange.Candle) []float64 {
	out := nanSlice(len(candles))
	var pvSum, volSum float64
	var day int

	for i, c := range candles {
		d := c.TS.UTC().YearDay() + c.TS.UTC().Year()*1000
		if i == 0 || d != day {
			day = d
			pvSum, volSum = 0, 0
		}
		typical := (c.High + c.Low + c.Close) / 3
		pvSum += typical * c.Volume
		volSum += c.Volume
		if volSum != 0 {
			out[i] = pvSum / volSum
		}
	}
	return out
}

// AnchoredVWAP returns the VWAP anchored at the most recent Donchian
// upper breakout (close above the channel, which excludes the current
// bar). Each new breakout re-anchors the accumulation. Before the first
// anchor the session VWAP is used so the column is never empty.
func AnchoredVWAP(candles []exchange.Candle, donchUpper []float64) []float64 {
	out := nanSlice(len(candles))
	session := SessionVWAP(candles)

	anchored := false
	var pvSum, volSum float64

	for i, c := range candles {
		breakout := !math.IsNaN(donchUpper[i]) && c.Close > donchUpper[i]
		if breakout {
			anchored = true
			pvSum, volSum = 0, 0
		}
		if !anchored {
			out[i] = session[i]
			continue
		}
		typical := (c.High + c.Low + c.Close) / 3
		pvSum += typical * c.Volume
		volSum += c.Volume
		if volSum != 0 {
			out[i] = pvSum / volSum
		}
	}
	return out
}
