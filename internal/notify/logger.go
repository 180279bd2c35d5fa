package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Logger writes every event to the service log.
type Logger struct {
	log logrus.FieldLogger
}

func NewLogger(log logrus.FieldLogger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Dispatch(_ context.Context, event Event) error {
	l.log.WithFields(logrus.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("order event")
	return nil
}
