// Package log defines the structured logging contract used across the engine.
// Components accept a Logger at construction; a nil logger degrades to Nop.
package log

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the minimal structured logging interface.
type Logger interface {
	Log(ctx context.Context, level Level, msg string, fields ...Field)
	With(fields ...Field) Logger
	Enabled(level Level) bool
}

// Level represents the severity of a log entry. Lower numeric values are
// more severe; a logger's level acts as a verbosity ceiling.
type Level uint8

// Severity constants, most severe first.
const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the lowercase name of the level.
func (level Level) String() string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level constant.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}

	return LevelInfo, fmt.Errorf("not a valid level: %q", lvl)
}

// Field is a typed key/value attribute attached to a log event.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with an arbitrary value. Prefer the typed constructors.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err creates the conventional `error` field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// NopLogger discards everything. It is the fallback for nil loggers.
type NopLogger struct{}

// Log implements Logger.
func (*NopLogger) Log(context.Context, Level, string, ...Field) {}

// With implements Logger.
//
//nolint:ireturn
func (n *NopLogger) With(...Field) Logger { return n }

// Enabled implements Logger.
func (*NopLogger) Enabled(Level) bool { return false }

// OrNop returns l, or a NopLogger when l is nil.
//
//nolint:ireturn
func OrNop(l Logger) Logger {
	if l == nil {
		return &NopLogger{}
	}

	return l
}
