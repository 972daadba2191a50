// Package logging provides structured JSON logging for mplan components.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	}
	return LevelInfo
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	}
	return false
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger provides component-scoped structured logging
type Logger struct {
	component string
	project   string
	logger    *slog.Logger
}

// New creates a logger for a component writing JSON to stderr.
func New(component string) *Logger {
	return NewWithWriter(component, os.Stderr, ParseLevel(os.Getenv("MPLAN_LOG_LEVEL")))
}

// NewWithWriter creates a logger writing JSON lines to w.
func NewWithWriter(component string, w io.Writer, level Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return &Logger{
		component: component,
		logger:    slog.New(handler).With(slog.String("component", component)),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter("discard", io.Discard, LevelError)
}

// WithProject sets the project context
func (l *Logger) WithProject(project string) *Logger {
	return &Logger{
		component: l.component,
		project:   project,
		logger:    l.logger.With(slog.String("project", project)),
	}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, event string, extra map[string]any, err error) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level.slogLevel()) {
		return
	}
	attrs := make([]slog.Attr, 0, 2)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if len(extra) > 0 {
		attrs = append(attrs, slog.Any("extra", extra))
	}
	l.logger.LogAttrs(ctx, level.slogLevel(), event, attrs...)
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(LevelDebug, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(LevelInfo, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(LevelWarn, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(LevelError, event, extra, err)
}

// TimedEvent logs an info event with its duration since start.
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, event,
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Any("extra", extra),
	)
}
