package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger and provides structured logging capabilities.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger writing to stdout, configured for the given environment.
// In development mode, it outputs pretty-printed colored logs.
// Elsewhere it outputs JSON formatted logs.
func New(env string) *Logger {
	return NewWithWriter(os.Stdout, env, "")
}

// NewWithLevel is New with an explicit level that overrides the environment default.
// An empty or unknown level keeps the default.
func NewWithLevel(env, level string) *Logger {
	return NewWithWriter(os.Stdout, env, level)
}

// NewWithWriter creates a Logger writing to w. The CLI passes stderr so that command
// output on stdout stays machine-readable.
func NewWithWriter(w io.Writer, env, level string) *Logger {
	output := w
	if env == "development" {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout && w != os.Stderr,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	zlog := zerolog.New(output).
		Level(resolveLevel(env, level)).
		With().
		Timestamp().
		Logger()

	return &Logger{zlog: zlog}
}

// resolveLevel maps an explicit level name, falling back to debug in development and
// info elsewhere.
func resolveLevel(env, level string) zerolog.Level {
	if level = strings.TrimSpace(level); level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && parsed != zerolog.NoLevel {
			return parsed
		}
	}
	if env == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Debug(), fields).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Info(), fields).Msg(msg)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	withFields(l.zlog.Warn(), fields).Msg(msg)
}

// Error logs an error message with an error and optional fields.
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	withFields(l.zlog.Error().Err(err), fields).Msg(msg)
}

// Fatal logs a fatal message and exits the application.
func (l *Logger) Fatal(msg string, err error, fields map[string]interface{}) {
	withFields(l.zlog.Fatal().Err(err), fields).Msg(msg)
}

func withFields(event *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	return event
}

// With creates a child logger with additional context fields, such as the component name.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithRequestID creates a child logger with a request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().Str("request_id", requestID).Logger(),
	}
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// GetZerolog returns the underlying zerolog.Logger for advanced usage.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}
