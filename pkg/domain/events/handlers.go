package events

import (
	"context"

	"go.uber.org/zap"
)

// LoggingHandler is a catch-all handler that logs all events at debug level.
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler.
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{logger: logger}
}

// Handle logs the event details.
func (h *LoggingHandler) Handle(_ context.Context, event DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("run_id", event.RunID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if se, ok := event.(*StageEvent); ok {
		fields = append(fields, zap.String("stage", se.Stage), zap.Int("index", se.Index))
		if se.Err != "" {
			fields = append(fields, zap.String("error", se.Err))
		}
	}
	h.logger.Debug("pipeline event", fields...)
	return nil
}

// Registration returns the HandlerRegistration for this handler.
func (h *LoggingHandler) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "LoggingHandler",
		Handler:    h.Handle,
		EventTypes: []string{"*"},
	}
}
