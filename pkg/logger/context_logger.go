package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

// Context keys recognized by WithContext. The key's own string doubles
// as the logged field name.
const (
	RequestIDKey contextKey = "request_id"
	PeerAddrKey  contextKey = "peer_addr"
	SessionIDKey contextKey = "session_id"
)

var contextKeys = [...]contextKey{RequestIDKey, PeerAddrKey, SessionIDKey}

// ContextLogger decorates a zap logger with whatever identifying
// fields the request context carries.
type ContextLogger struct {
	base *zap.Logger
}

// NewContextLogger wraps base for per-request field extraction.
func NewContextLogger(base *zap.Logger) *ContextLogger {
	return &ContextLogger{base: base}
}

// WithContext returns the base logger plus one field per recognized
// context key present on ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	var fields []zapcore.Field
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}

	if len(fields) == 0 {
		return cl.base
	}
	return cl.base.With(fields...)
}
