package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventRecord is one append-only audit event
type EventRecord struct {
	ID         int64           `json:"id" db:"id"`
	TS         time.Time       `json:"ts" db:"ts"`
	Level      string          `json:"level" db:"level"`
	Tag        string          `json:"tag" db:"tag"`
	Action     string          `json:"action" db:"action"`
	Symbol     string          `json:"symbol" db:"symbol"`
	DecisionID string          `json:"decision_id" db:"decision_id"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
}

// InsertEvent appends an event to the log. Events are never updated or
// deleted; ordering within a decision follows the bigserial id.
func (s *Store) InsertEvent(ctx context.Context, e EventRecord) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}
	var decisionID any
	if e.DecisionID != "" {
		decisionID = e.DecisionID
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO event_log (ts, level, tag, action, symbol, decision_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.TS, e.Level, e.Tag, e.Action, e.Symbol, decisionID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventFilter narrows GetEvents. Zero values mean "any".
type EventFilter struct {
	Level      string
	Tag        string
	Symbol     string
	DecisionID string
	Limit      int
}

// GetEvents returns matching events, newest first
func (s *Store) GetEvents(ctx context.Context, f EventFilter) ([]EventRecord, error) {
	query := `
		SELECT id, ts, level, tag, COALESCE(action, ''), COALESCE(symbol, ''),
		       COALESCE(decision_id::text, ''), payload
		FROM event_log WHERE 1=1`
	var args []any
	n := 0

	add := func(clause, val string) {
		if val != "" {
			n++
			query += fmt.Sprintf(" AND %s = $%d", clause, n)
			args = append(args, val)
		}
	}
	add("level", f.Level)
	add("tag", f.Tag)
	add("symbol", f.Symbol)
	add("decision_id::text", f.DecisionID)

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TS, &e.Level, &e.Tag, &e.Action,
			&e.Symbol, &e.DecisionID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}
