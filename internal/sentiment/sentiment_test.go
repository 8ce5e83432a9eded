package sentiment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	snap  Snapshot
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	s.calls.Add(1)
	if s.err != nil {
		return Snapshot{}, s.err
	}
	snap := s.snap
	snap.Symbol = symbol
	return snap, nil
}

func TestWindowStart(t *testing.T) {
	morning := time.Date(2026, 8, 24, 7, 13, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), WindowStart(morning))

	evening := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), WindowStart(evening))

	noon := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), WindowStart(noon))
}

func TestGetCachesPerWindow(t *testing.T) {
	p := &stubProvider{name: "stub", snap: Snapshot{Sent24h: 0.4, Sent7d: 0.1, Trend: 0.3, Sources: []string{"stub"}}}
	svc := NewService([]Provider{p}, nil, nil, time.Hour)

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	first := svc.Get(context.Background(), "BTC/USD", now)
	assert.Equal(t, 0.4, first.Sent24h)

	// Same window: served from memory
	svc.Get(context.Background(), "BTC/USD", now.Add(30*time.Minute))
	assert.Equal(t, int32(1), p.calls.Load())

	// New window: refetched
	svc.Get(context.Background(), "BTC/USD", now.Add(8*time.Hour))
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestGetFallsThroughProviderChain(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	backup := &stubProvider{name: "backup", snap: Snapshot{Sent24h: -0.2, Fallback: true, Sources: []string{"backup"}}}
	svc := NewService([]Provider{primary, backup}, nil, nil, time.Hour)

	snap := svc.Get(context.Background(), "ETH/USD", time.Now().UTC())
	assert.Equal(t, -0.2, snap.Sent24h)
	assert.True(t, snap.Fallback)
	assert.Equal(t, "backup", snap.Source())
}

func TestGetNeutralWhenAllFail(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	svc := NewService([]Provider{primary}, nil, nil, time.Hour)

	now := time.Now().UTC()
	snap := svc.Get(context.Background(), "SOL/USD", now)
	assert.Zero(t, snap.Sent24h)
	assert.Zero(t, snap.Sent7d)
	assert.Zero(t, snap.Burst)
	assert.True(t, snap.Fallback)
	assert.Equal(t, "neutral", snap.Source())

	// Neutral is not cached: the next cycle retries the providers
	svc.Get(context.Background(), "SOL/USD", now.Add(time.Minute))
	assert.Equal(t, int32(2), primary.calls.Load())
}

func TestRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	p := &stubProvider{name: "stub", snap: Snapshot{Sent24h: 0.6, Sources: []string{"stub"}}}
	svc := NewService([]Provider{p}, nil, rdb, time.Hour)

	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	svc.Get(context.Background(), "BTC/USD", now)
	require.Equal(t, int32(1), p.calls.Load())

	// A fresh service (daemon restart) finds the snapshot in Redis
	svc2 := NewService([]Provider{p}, nil, rdb, time.Hour)
	snap := svc2.Get(context.Background(), "BTC/USD", now)
	assert.Equal(t, 0.6, snap.Sent24h)
	assert.Equal(t, int32(1), p.calls.Load(), "no provider call on redis hit")
}

func TestScoreText(t *testing.T) {
	pos, posHits := ScoreText("rally surge breakout")
	assert.InDelta(t, 0.5, pos, 1e-9, "all positive caps at +0.5")
	assert.Equal(t, 3, posHits)

	neg, _ := ScoreText("crash hack plunge")
	assert.InDelta(t, -0.5, neg, 1e-9, "all negative caps at -0.5")

	none, noneHits := ScoreText("the weather is fine")
	assert.Zero(t, none)
	assert.Zero(t, noneHits)

	mixed, _ := ScoreText("rally rally crash")
	assert.InDelta(t, (2.0-1.0)/3.0*0.5, mixed, 1e-9)
}

func TestBurst(t *testing.T) {
	assert.Zero(t, burst(0, 0), "no news at all")
	assert.Zero(t, burst(1, 7), "a day matching the weekly average is no burst")
	assert.Greater(t, burst(10, 14), 0.5, "5x the daily average is a strong burst")
	assert.LessOrEqual(t, burst(1000, 7), 1.0)
}

func TestNeutralShape(t *testing.T) {
	ts := time.Now().UTC()
	n := Neutral("BTC/USD", ts)
	assert.Equal(t, Snapshot{Symbol: "BTC/USD", TS: ts, Fallback: true, Sources: []string{"neutral"}}, n)
	assert.Zero(t, n.Sent24h)
	assert.Zero(t, n.Sent7d)
	assert.Zero(t, n.Trend)
	assert.Zero(t, n.Burst)
}
