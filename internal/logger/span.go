package logger

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldDurationMS = "duration_ms"

	EventStart = "start"
	EventEnd   = "end"
	EventError = "error"
)

var now = time.Now

// Span times one named step. Every entry carries the step name as its message
// and an event field: start, the update name, then end or error.
type Span struct {
	logger *zap.Logger
	name   string
	start  time.Time
}

func StartSpan(logger *zap.Logger, name string, fields ...zap.Field) *Span {
	s := &Span{logger: WithFields(logger), name: name, start: now()}
	s.logger.Info(name, append([]zap.Field{zap.String(FieldEvent, EventStart)}, fields...)...)
	return s
}

// Update records an intermediate event of the step.
func (s *Span) Update(event string, fields ...zap.Field) {
	s.logger.Info(s.name, append([]zap.Field{zap.String(FieldEvent, event)}, fields...)...)
}

// Debug is Update at debug level, for payload previews.
func (s *Span) Debug(event string, fields ...zap.Field) {
	s.logger.Debug(s.name, append([]zap.Field{zap.String(FieldEvent, event)}, fields...)...)
}

// End closes the span, logging an error entry when err is non-nil.
func (s *Span) End(err error, fields ...zap.Field) time.Duration {
	elapsed := now().Sub(s.start)
	base := []zap.Field{zap.Int64(FieldDurationMS, elapsed.Milliseconds())}

	if err != nil {
		s.logger.Error(s.name, append(append([]zap.Field{zap.String(FieldEvent, EventError)}, base...), append(fields, zap.Error(err))...)...)
		return elapsed
	}

	s.logger.Info(s.name, append(append([]zap.Field{zap.String(FieldEvent, EventEnd)}, base...), fields...)...)
	return elapsed
}
