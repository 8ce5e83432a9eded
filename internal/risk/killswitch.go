package risk

import (
	"math"
	"sort"
	"sync"

	"github.com/quantline/papertrader/internal/exchange"
)

// KillSwitch trips a symbol when short-horizon realized volatility blows
// out past a multiple of its 30-day norm, and keeps it tripped for a
// fixed number of bars.
type KillSwitch struct {
	sigmaMult float64
	tripBars  int

	mu      sync.Mutex
	tripped map[string]int // symbol -> bars remaining
}

// NewKillSwitch creates a kill switch
func NewKillSwitch(sigmaMult float64, tripBars int) *KillSwitch {
	return &KillSwitch{
		sigmaMult: sigmaMult,
		tripBars:  tripBars,
		tripped:   make(map[string]int),
	}
}

// Evaluate compares recent vol against the baseline and trips the
// switch when recent > sigmaMult * baseline. Returns whether the
// symbol is (now) tripped. A zero baseline never trips.
func (k *KillSwitch) Evaluate(symbol string, recentVol, baselineVol float64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.tripped[symbol] > 0 {
		return true
	}
	if baselineVol > 0 && recentVol > k.sigmaMult*baselineVol {
		k.tripped[symbol] = k.tripBars
		return true
	}
	return false
}

// Active reports whether the symbol is currently tripped
func (k *KillSwitch) Active(symbol string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped[symbol] > 0
}

// Tick advances one bar for every tripped symbol
func (k *KillSwitch) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for sym, n := range k.tripped {
		if n <= 1 {
			delete(k.tripped, sym)
		} else {
			k.tripped[sym] = n - 1
		}
	}
}

// RealizedVol returns the standard deviation of log returns over the
// last window closes. NaN-free: returns 0 when there is not enough data.
func RealizedVol(closes []float64, window int) float64 {
	if window < 2 || len(closes) < window+1 {
		return 0
	}
	closes = closes[len(closes)-window-1:]

	returns := make([]float64, 0, window)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(returns)))
}

// MedianDailyVol computes the median per-UTC-day realized vol of bar
// log returns over the last days days. Days with fewer than 3 bars are
// skipped. Returns 0 when no day qualifies.
func MedianDailyVol(candles []exchange.Candle, days int) float64 {
	if len(candles) == 0 || days <= 0 {
		return 0
	}

	byDay := make(map[string][]float64)
	var order []string
	for _, c := range candles {
		day := c.TS.UTC().Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], c.Close)
	}
	if len(order) > days {
		order = order[len(order)-days:]
	}

	var vols []float64
	for _, day := range order {
		closes := byDay[day]
		if len(closes) < 3 {
			continue
		}
		if v := RealizedVol(closes, len(closes)-1); v > 0 {
			vols = append(vols, v)
		}
	}
	if len(vols) == 0 {
		return 0
	}

	sort.Float64s(vols)
	mid := len(vols) / 2
	if len(vols)%2 == 1 {
		return vols[mid]
	}
	return (vols[mid-1] + vols[mid]) / 2
}
