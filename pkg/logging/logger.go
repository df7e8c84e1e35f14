// Package logging provides the small structured-logging seam used across
// the store, history, and adapter packages. It wraps go.uber.org/zap so
// call sites never import zap directly, matching the logging indirection
// the teacher SDK keeps around its monitoring stack.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging key/value pair.
type Field = zap.Field

// String, Int, Uint32, Uint64, Err, Any re-export the zap field
// constructors so callers only ever import this package.
var (
	String = zap.String
	Int    = zap.Int
	Uint32 = zap.Uint32
	Uint64 = zap.Uint64
	Err    = zap.Error
	Any    = zap.Any
)

// Logger is the structured logger interface accepted by store, history,
// and adapter constructors.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a production JSON logger at the given level.
func New(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panicking from a
		// logging constructor.
		return NewNop()
	}
	return &zapLogger{l: l}
}

// NewNop returns a logger that discards everything, used as the default
// when no Logger option is supplied and throughout tests.
func NewNop() Logger {
	return &zapLogger{l: zap.NewNop()}
}

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}
