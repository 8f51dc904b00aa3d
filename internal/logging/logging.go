// Package logging provides the fluent, leveled logger used across the
// server and client binaries.
package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around a zerolog.Logger exposing the
// Info()/Warn()/Error(err) entry-point style used throughout this codebase.
type Logger struct {
	mu   sync.RWMutex
	zlog zerolog.Logger
}

// Entry is a single in-progress log record; fields accumulate via the
// With* methods until Write() flushes it.
type Entry struct {
	level   zerolog.Level
	err     error
	message string
	fields  map[string]interface{}
	logger  *Logger
}

// L is the process-wide logger instance.
var L = New()

// New builds a Logger writing human-readable, timestamped lines to stderr.
func New() *Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	return &Logger{zlog: zl}
}

func (l *Logger) newEntry(level zerolog.Level) *Entry {
	return &Entry{level: level, fields: make(map[string]interface{}), logger: l}
}

// Info starts an info-level entry.
func (l *Logger) Info() *Entry { return l.newEntry(zerolog.InfoLevel) }

// Warn starts a warn-level entry.
func (l *Logger) Warn() *Entry { return l.newEntry(zerolog.WarnLevel) }

// Error starts an error-level entry carrying the given error.
func (l *Logger) Error(err error) *Entry {
	e := l.newEntry(zerolog.ErrorLevel)
	e.err = err
	return e
}

// WithMessage sets the entry's human-readable message.
func (e *Entry) WithMessage(msg string) *Entry {
	e.message = msg
	return e
}

// WithField attaches a single key/value pair to the entry.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// WithFields merges the given key/value pairs into the entry.
func (e *Entry) WithFields(fields map[string]interface{}) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// Write finalizes and emits the entry.
func (e *Entry) Write() {
	e.logger.mu.RLock()
	defer e.logger.mu.RUnlock()

	ev := e.logger.zlog.WithLevel(e.level).Fields(e.fields)
	if e.err != nil {
		ev = ev.Err(e.err)
	}
	ev.Msg(e.message)
}
