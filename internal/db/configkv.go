package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Config table keys used by the daemon
const (
	KeyInitialNAV = "initial_nav"
	KeyPeakNAV    = "peak_nav"
)

// PauseKey returns the config key flagging a paused symbol
func PauseKey(symbol string) string {
	return "paused:" + symbol
}

// SetConfigValue upserts a JSON value into the config table
func (s *Store) SetConfigValue(ctx context.Context, key string, value any) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal config value %s: %w", key, err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// GetConfigValue unmarshals the config value for key into out.
// Returns false when the key does not exist.
func (s *Store) GetConfigValue(ctx context.Context, key string, out any) (bool, error) {
	var blob []byte
	err := s.q.QueryRow(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get config %s: %w", key, err)
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal config %s: %w", key, err)
	}
	return true, nil
}

// GetConfigFloat returns a float config value with a default
func (s *Store) GetConfigFloat(ctx context.Context, key string, def float64) (float64, error) {
	var v float64
	ok, err := s.GetConfigValue(ctx, key, &v)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// UpdatePeakNAV raises the stored peak to nav when nav exceeds it, and
// returns the effective peak. The peak never decreases.
func (s *Store) UpdatePeakNAV(ctx context.Context, nav float64) (float64, error) {
	peak, err := s.GetConfigFloat(ctx, KeyPeakNAV, 0)
	if err != nil {
		return 0, err
	}
	if nav > peak {
		if err := s.SetConfigValue(ctx, KeyPeakNAV, nav); err != nil {
			return 0, err
		}
		return nav, nil
	}
	return peak, nil
}

// IsPaused reports whether a symbol is operator-paused (invariant breach)
func (s *Store) IsPaused(ctx context.Context, symbol string) (bool, error) {
	var paused bool
	ok, err := s.GetConfigValue(ctx, PauseKey(symbol), &paused)
	if err != nil {
		return false, err
	}
	return ok && paused, nil
}

// SetPaused sets or clears the pause flag for a symbol
func (s *Store) SetPaused(ctx context.Context, symbol string, paused bool) error {
	return s.SetConfigValue(ctx, PauseKey(symbol), paused)
}
