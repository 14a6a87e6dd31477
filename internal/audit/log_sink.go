package audit

import (
	"context"

	"github.com/cortexai/querygate/internal/security"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes records as structured log events. Arguments carry SQL, so
// they are logged as a hash unless IncludeArguments is set.
type LogSink struct {
	logger           zerolog.Logger
	IncludeArguments bool
}

// NewLogSink logs through the global logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: log.Logger}
}

func NewLogSinkWith(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, rec Record) error {
	level := zerolog.InfoLevel
	switch rec.Status {
	case StatusError, StatusPanic, StatusBlocked:
		level = zerolog.WarnLevel
	}

	evt := s.logger.WithLevel(level).
		Str("event", "tool_audit").
		Uint64("seq", rec.Seq).
		Str("invocation_id", rec.InvocationID).
		Str("tool", rec.Tool).
		Str("phase", string(rec.Phase)).
		Str("status", rec.Status)

	if rec.TurnID != "" {
		evt = evt.Str("turn_id", rec.TurnID)
	}
	if rec.ParentID != "" {
		evt = evt.Str("parent_id", rec.ParentID)
	}
	if s.IncludeArguments {
		evt = evt.Str("arguments", rec.Arguments)
	} else {
		evt = evt.Str("arguments_hash", security.HashShort(rec.Arguments))
	}
	if rec.Phase == PhaseAfter {
		evt = evt.Int64("duration_ms", rec.DurationMs)
	}
	evt.Msg("audit")
	return nil
}

func (s *LogSink) Close() error { return nil }
