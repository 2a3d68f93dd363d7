// Package logger provides structured logging for the setup service.
//
// It wraps logrus to provide:
//   - Structured logging with JSON and text output
//   - Configurable log levels (debug, info, warn, error)
//   - Context helpers for flow, step, domain and entry fields
//
// Example usage:
//
//	log, err := logger.New("info", "json")
//	if err != nil {
//		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
//	}
//	log.WithFlowID(id).Info("Flow started")
//	log.Warn("Login failed", "step", "user", "error", err)
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with convenience methods
type Logger struct {
	*logrus.Logger
}

// New creates a new logger writing to stderr
func New(level, format string) (*Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a new logger with custom output writer
func NewWithWriter(level, format string, out io.Writer) (*Logger, error) {
	log := logrus.New()

	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	log.SetLevel(parsedLevel)
	log.SetOutput(out)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", format)
	}

	return &Logger{log}, nil
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	log, _ := NewWithWriter("error", "text", io.Discard)
	return log
}

// WithFlowID returns a logger entry with flow ID context
func (l *Logger) WithFlowID(flowID string) *logrus.Entry {
	return l.WithField("flow_id", flowID)
}

// WithStep returns a logger entry with step context
func (l *Logger) WithStep(stepID string) *logrus.Entry {
	return l.WithField("step_id", stepID)
}

// WithDomain returns a logger entry with integration domain context
func (l *Logger) WithDomain(domain string) *logrus.Entry {
	return l.WithField("domain", domain)
}

// WithEntryID returns a logger entry with config entry context
func (l *Logger) WithEntryID(entryID string) *logrus.Entry {
	return l.WithField("entry_id", entryID)
}

// WithError returns a logger entry with error context
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithField("error", err.Error())
}

// Info logs an info level message
func (l *Logger) Info(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		l.Logger.WithFields(toFields(fields)).Info(msg)
	} else {
		l.Logger.Info(msg)
	}
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		l.Logger.WithFields(toFields(fields)).Debug(msg)
	} else {
		l.Logger.Debug(msg)
	}
}

// Warn logs a warning level message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		l.Logger.WithFields(toFields(fields)).Warn(msg)
	} else {
		l.Logger.Warn(msg)
	}
}

// Error logs an error level message
func (l *Logger) Error(msg string, fields ...interface{}) {
	if len(fields) > 0 {
		l.Logger.WithFields(toFields(fields)).Error(msg)
	} else {
		l.Logger.Error(msg)
	}
}

// toFields converts variadic key-value pairs to logrus.Fields
func toFields(args []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args)-1; i += 2 {
		key := fmt.Sprintf("%v", args[i])
		fields[key] = args[i+1]
	}
	return fields
}
