package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Logger is a thin wrapper around slog that carries a scope and an
// optional function/file attribute, and offers error-returning helpers
// so call sites can log and propagate in one statement.
type Logger struct {
	handler  *slog.Logger
	scope    string
	function string
	file     string
}

var base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// SetDefault replaces the process-wide base logger. Used by tests to
// silence output or capture records.
func SetDefault(l *slog.Logger) {
	base = l
}

func New(scope string) Logger {
	return Logger{handler: base, scope: scope}
}

func (l Logger) Function(name string) Logger {
	l.function = name
	return l
}

func (l Logger) File(name string) Logger {
	l.file = name
	return l
}

func (l Logger) attrs(args []any) []any {
	out := make([]any, 0, len(args)+6)
	out = append(out, "scope", l.scope)
	if l.function != "" {
		out = append(out, "function", l.function)
	}
	if l.file != "" {
		out = append(out, "file", l.file)
	}
	return append(out, args...)
}

func (l Logger) Info(msg string, args ...any) {
	l.handler.Info(msg, l.attrs(args)...)
}

func (l Logger) Warn(msg string, args ...any) {
	l.handler.Warn(msg, l.attrs(args)...)
}

func (l Logger) Debug(msg string, args ...any) {
	l.handler.Debug(msg, l.attrs(args)...)
}

// Er logs an error without returning one. Use on paths where the error
// is handled locally.
func (l Logger) Er(msg string, err error, args ...any) {
	l.handler.Error(msg, l.attrs(append(args, "error", err))...)
}

// ErMsg logs an error-level message without an underlying error.
func (l Logger) ErMsg(msg string, args ...any) {
	l.handler.Error(msg, l.attrs(args)...)
}

// Err logs and returns the error wrapped with the message.
func (l Logger) Err(msg string, err error, args ...any) error {
	l.Er(msg, err, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Error logs an error-level message and returns it as a new error.
func (l Logger) Error(msg string, args ...any) error {
	l.ErMsg(msg, args...)
	return errors.New(msg)
}

// ErrMsg is Error without structured args.
func (l Logger) ErrMsg(msg string) error {
	l.ErMsg(msg)
	return errors.New(msg)
}
