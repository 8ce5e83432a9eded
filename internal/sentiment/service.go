package sentiment

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
)

// Service resolves sentiment for a symbol once per refresh window,
// caching in-process with an optional Redis second tier, and persists
// every real snapshot for audit.
type Service struct {
	providers []Provider
	store     *db.Store
	redis     *redis.Client
	ttl       time.Duration
	log       zerolog.Logger

	mu   sync.Mutex
	memo map[string]Snapshot
}

// NewService builds the sentiment service. store and rdb may be nil
// (tests, redis disabled).
func NewService(providers []Provider, store *db.Store, rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		providers: providers,
		store:     store,
		redis:     rdb,
		ttl:       ttl,
		log:       config.NewLogger("sentiment"),
		memo:      make(map[string]Snapshot),
	}
}

// Get returns the sentiment snapshot for the window containing now.
// It never fails: when every provider is down a neutral snapshot is
// returned (and not cached, so the next cycle retries).
func (s *Service) Get(ctx context.Context, symbol string, now time.Time) Snapshot {
	window := WindowStart(now)
	key := cacheKey(symbol, window)

	s.mu.Lock()
	if snap, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return snap
	}
	s.mu.Unlock()

	if snap, ok := s.fromRedis(ctx, key); ok {
		s.remember(key, snap)
		return snap
	}

	for _, p := range s.providers {
		snap, err := p.Fetch(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).
				Str("provider", p.Name()).
				Str("symbol", symbol).
				Msg("sentiment provider failed")
			continue
		}
		snap.TS = window
		s.persist(ctx, key, snap)
		s.remember(key, snap)
		return snap
	}

	s.log.Warn().Str("symbol", symbol).Msg("all sentiment providers failed, serving neutral")
	return Neutral(symbol, window)
}

func (s *Service) remember(key string, snap Snapshot) {
	s.mu.Lock()
	s.memo[key] = snap
	s.mu.Unlock()
}

func (s *Service) fromRedis(ctx context.Context, key string) (Snapshot, bool) {
	if s.redis == nil {
		return Snapshot{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return Snapshot{}, false // miss or redis down, either way fall through
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

func (s *Service) persist(ctx context.Context, key string, snap Snapshot) {
	if s.redis != nil {
		if raw, err := json.Marshal(snap); err == nil {
			rctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			if err := s.redis.Set(rctx, key, raw, s.ttl).Err(); err != nil {
				s.log.Debug().Err(err).Msg("redis sentiment write failed")
			}
			cancel()
		}
	}

	if s.store != nil {
		err := s.store.UpsertSentiment(ctx, db.SentimentRecord{
			Symbol:   snap.Symbol,
			TS:       snap.TS,
			Sent24h:  snap.Sent24h,
			Sent7d:   snap.Sent7d,
			Trend:    snap.Trend,
			Burst:    snap.Burst,
			Fallback: snap.Fallback,
			Sources:  snap.Sources,
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to persist sentiment snapshot")
		}
	}
}

func cacheKey(symbol string, window time.Time) string {
	return "sentiment:" + symbol + ":" + window.Format(time.RFC3339)
}
