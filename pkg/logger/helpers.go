package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an upstream HTTP request at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDelivery logs the outcome of relaying one media item
func LogDelivery(l Logger, target, itemID, kind, outcome string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"target":  target,
		"item_id": itemID,
		"kind":    kind,
		"outcome": outcome,
	})

	if err != nil {
		entry.WithError(err).Warn("Item skipped")
		return
	}
	entry.Info("Item delivered")
}

// LogBatch logs the summary of a finished batch
func LogBatch(l Logger, target string, sent, total int, duration time.Duration) {
	l.InfoWithFields("Batch finished", map[string]interface{}{
		"target":   target,
		"sent":     sent,
		"total":    total,
		"skipped":  total - sent,
		"duration": duration,
	})
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, settings map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
