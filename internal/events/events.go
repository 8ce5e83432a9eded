// Package events is the append-only audit trail. Every pipeline stage
// emits tagged events carrying the cycle's decision-id so a trade can be
// reconstructed end to end from the event log alone.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantline/papertrader/internal/config"
	"github.com/quantline/papertrader/internal/db"
)

// Event tags (closed vocabulary)
const (
	TagCycle      = "CYCLE"
	TagData       = "DATA"
	TagFeatures   = "FEATURES"
	TagSignal     = "SIGNAL"
	TagSentiment  = "SENTIMENT"
	TagProposal   = "PROPOSAL"
	TagConsultant = "CONSULTANT"
	TagValidation = "VALIDATION"
	TagTrade      = "TRADE"
	TagExit       = "EXIT"
	TagRisk       = "RISK"
	TagReflection = "REFLECTION"
	TagQA         = "QA"
	TagError      = "ERROR"
)

// Action codes (closed vocabulary)
const (
	ActionCycleStart            = "CYCLE_START"
	ActionCycleEnd              = "CYCLE_END"
	ActionTimeout               = "TIMEOUT"
	ActionStaleData             = "STALE_DATA"
	ActionWarmup                = "WARMUP"
	ActionFetchFail             = "FETCH_FAIL"
	ActionRegimeTrend           = "REGIME_TREND"
	ActionRegimeChop            = "REGIME_CHOP"
	ActionSkipNoSignal          = "SKIP_NO_SIGNAL"
	ActionAdvisorPropose        = "ADVISOR_PROPOSAL"
	ActionAdvisorFail           = "ADVISOR_FAIL"
	ActionConsultantApprove     = "CONSULTANT_APPROVE"
	ActionConsultantReject      = "CONSULTANT_REJECT"
	ActionConsultantModify      = "CONSULTANT_MODIFY"
	ActionConsultantAutoApprove = "CONSULTANT_AUTO_APPROVE"
	ActionValidationPass        = "VALIDATION_PASS"
	ActionValidationReject      = "VALIDATION_REJECT"
	ActionOpenLong              = "OPEN_LONG"
	ActionOpenShort             = "OPEN_SHORT"
	ActionExitStop              = "EXIT_STOP"
	ActionExitTime              = "EXIT_TIME"
	ActionExitKill              = "EXIT_KILL"
	ActionKillSwitch            = "KILL_SWITCH"
	ActionInvariant             = "INVARIANT"
	ActionFallback              = "FALLBACK"
	ActionSnapshot              = "SNAPSHOT"
)

// Levels
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Sink writes events to the store and mirrors them to the logger.
// A failed event write never fails the pipeline stage that emitted it.
type Sink struct {
	store *db.Store
	log   zerolog.Logger
}

// NewSink creates an event sink over the store
func NewSink(store *db.Store) *Sink {
	return &Sink{
		store: store,
		log:   config.NewLogger("events"),
	}
}

// Emit appends one event. payload may be nil or any JSON-marshalable
// value.
func (s *Sink) Emit(ctx context.Context, level, tag, action, symbol, decisionID string, payload any) {
	var blob json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			blob = b
		} else {
			s.log.Warn().Err(err).Str("tag", tag).Msg("event payload not marshalable")
		}
	}

	rec := db.EventRecord{
		TS:         time.Now().UTC(),
		Level:      level,
		Tag:        tag,
		Action:     action,
		Symbol:     symbol,
		DecisionID: decisionID,
		Payload:    blob,
	}
	if err := s.store.InsertEvent(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("tag", tag).Str("action", action).Msg("failed to persist event")
	}

	logEvent := s.log.Info()
	switch level {
	case LevelWarn:
		logEvent = s.log.Warn()
	case LevelError:
		logEvent = s.log.Error()
	}
	logEvent.
		Str("tag", tag).
		Str("action", action).
		Str("symbol", symbol).
		Str("decision_id", decisionID).
		Msg("event")
}

// Info emits an info-level event
func (s *Sink) Info(ctx context.Context, tag, action, symbol, decisionID string, payload any) {
	s.Emit(ctx, LevelInfo, tag, action, symbol, decisionID, payload)
}

// Warn emits a warn-level event
func (s *Sink) Warn(ctx context.Context, tag, action, symbol, decisionID string, payload any) {
	s.Emit(ctx, LevelWarn, tag, action, symbol, decisionID, payload)
}

// Error emits an error-level event
func (s *Sink) Error(ctx context.Context, tag, action, symbol, decisionID string, payload any) {
	s.Emit(ctx, LevelError, tag, action, symbol, decisionID, payload)
}
