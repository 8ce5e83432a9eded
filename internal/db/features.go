package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SaveFeatures persists the computed feature row for a bar as JSONB.
// The payload is any JSON-marshalable value; the indicator package's
// FeatureRow is the usual caller.
func (s *Store) SaveFeatures(ctx context.Context, symbol, tf string, ts time.Time, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO features (symbol, tf, ts, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, tf, ts) DO UPDATE SET payload = EXCLUDED.payload`,
		symbol, tf, ts, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to save features: %w", err)
	}
	return nil
}

// GetFeatures returns the raw feature payload for a bar, or nil when absent
func (s *Store) GetFeatures(ctx context.Context, symbol, tf string, ts time.Time) (json.RawMessage, error) {
	var blob []byte
	err := s.q.QueryRow(ctx,
		`SELECT payload FROM features WHERE symbol = $1 AND tf = $2 AND ts = $3`,
		symbol, tf, ts,
	).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	return json.RawMessage(blob), nil
}
