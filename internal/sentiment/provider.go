// Package sentiment produces twice-daily market sentiment snapshots from
// a chain of providers: an online search LLM, a keyword-count web
// fallback, and finally a neutral placeholder so the pipeline never
// blocks on sentiment.
package sentiment

import (
	"context"
	"time"
)

// Snapshot is one sentiment reading for a symbol. Trend is always
// Sent24h - Sent7d; a positive trend means sentiment is improving.
type Snapshot struct {
	Symbol   string    `json:"symbol"`
	TS       time.Time `json:"ts"`
	Sent24h  float64   `json:"sent_24h"`   // [-1, 1]
	Sent7d   float64   `json:"sent_7d"`    // [-1, 1]
	Trend    float64   `json:"sent_trend"` // Sent24h - Sent7d
	Burst    float64   `json:"burst"`      // [0, 1] news-volume spike
	Fallback bool      `json:"fallback"`
	Sources  []string  `json:"sources"`
}

// Source returns the provider that produced the snapshot
func (s Snapshot) Source() string {
	if len(s.Sources) == 0 {
		return ""
	}
	return s.Sources[0]
}

// Provider fetches a sentiment snapshot for a symbol
type Provider interface {
	Fetch(ctx context.Context, symbol string) (Snapshot, error)
	Name() string
}

// Neutral returns the last-resort snapshot: all zeros, flagged fallback
func Neutral(symbol string, ts time.Time) Snapshot {
	return Snapshot{
		Symbol:   symbol,
		TS:       ts,
		Fallback: true,
		Sources:  []string{"neutral"},
	}
}

// WindowStart returns the refresh window containing now: 00:00 or 12:00
// UTC of the current day. Snapshots are keyed and cached per window.
func WindowStart(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if now.Hour() >= 12 {
		start = start.Add(12 * time.Hour)
	}
	return start
}

func clampScore(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
