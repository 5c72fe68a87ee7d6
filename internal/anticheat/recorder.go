// Package anticheat records integrity signals reported by candidate clients.
package anticheat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// Known event types emitted by the interview frontend. Other types are
// accepted and recorded as-is.
const (
	EventTabHidden    = "tab_hidden_or_minimized"
	EventWindowBlur   = "window_blur"
	EventContextMenu  = "context_menu"
	EventCopyAttempt  = "copy_attempt"
	EventPasteAttempt = "paste_attempt"
	EventDevtools     = "devtools_attempt"
)

// Sink persists or forwards a recorded event.
type Sink interface {
	Record(ctx context.Context, ev domain.AnticheatEvent) error
}

// SessionAppender attaches events to a candidate's session.
type SessionAppender interface {
	AppendEvent(candidateID string, ev domain.AnticheatEvent)
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger selects slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, ev domain.AnticheatEvent) error {
	attrs := []any{
		slog.String("event_type", ev.EventType),
		slog.Time("occurred_at", ev.OccurredAt),
	}
	if ev.CandidateID != "" {
		attrs = append(attrs, slog.String("candidate_id", ev.CandidateID))
	}
	if len(ev.Details) > 0 {
		attrs = append(attrs, slog.String("details", string(ev.Details)))
	}
	s.logger.InfoContext(ctx, "anticheat event", attrs...)
	return nil
}

// Recorder validates events and fans them out to its sinks and, when the
// event names a candidate, to that candidate's session.
type Recorder struct {
	sinks    []Sink
	sessions SessionAppender
	logger   *slog.Logger
	now      func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSessions associates events with candidate sessions.
func WithSessions(sessions SessionAppender) RecorderOption {
	return func(r *Recorder) {
		r.sessions = sessions
	}
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder writing to sinks in order.
func NewRecorder(sinks []Sink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sinks:  sinks,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores one event. eventType is required; occurredAt defaults to the
// receive time when zero. Sink failures are logged and do not fail the call:
// the event has already been accepted by then.
func (r *Recorder) Record(ctx context.Context, candidateID, eventType string, details json.RawMessage, occurredAt time.Time) (*domain.AnticheatEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil, domain.ErrValidation("missing event_type").WithField("event_type")
	}
	if len(details) > 0 && !json.Valid(details) {
		return nil, domain.ErrValidation("details must be valid JSON").WithField("details")
	}

	now := r.now()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	ev := domain.AnticheatEvent{
		CandidateID: candidateID,
		EventType:   eventType,
		Details:     append(json.RawMessage(nil), details...),
		OccurredAt:  occurredAt,
		ReceivedAt:  now,
	}

	for _, sink := range r.sinks {
		if err := sink.Record(ctx, ev); err != nil {
			r.logger.ErrorContext(ctx, "failed to record anticheat event",
				slog.String("event_type", ev.EventType),
				slog.String("error", err.Error()))
		}
	}

	if candidateID != "" && r.sessions != nil {
		r.sessions.AppendEvent(candidateID, ev)
	}

	return &ev, nil
}
