// Package logging wraps zap with redaction-aware helpers: any argument that
// carries secret material is rendered in its redacted form before it reaches
// a sink. Code that logs command output or expanded values must go through
// this package rather than zap directly.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bluish-run/bluish/expression"
)

var logger *zap.SugaredLogger

func init() {
	logger = zap.NewNop().Sugar()
}

// Init configures the process logger. Level is one of debug, info, warn,
// error (case-insensitive).
func Init(level string) error {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.DisableStacktrace = true
	config.DisableCaller = true

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	config.Level = zap.NewAtomicLevelAt(parsed)

	built, err := config.Build()
	if err != nil {
		return err
	}
	logger = built.Sugar()
	return nil
}

// SetLogger replaces the process logger and returns the previous one so
// the caller can restore it.
func SetLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	previous := logger
	logger = l
	return previous
}

// redact rewrites args so that secret-carrying values log their redacted
// rendering.
func redact(args []interface{}) []interface{} {
	for i, arg := range args {
		if expression.IsSafe(arg) {
			args[i] = expression.Redact(arg)
		}
	}
	return args
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, redact(args)...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, redact(args)...)
}

func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, redact(args)...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, redact(args)...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = logger.Sync()
}

// Decorate prefixes every line of a multiline value for pretty logging.
func Decorate(value, decoration string) string {
	if value == "" {
		return ""
	}
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		lines[i] = decoration + line
	}
	return strings.Join(lines, "\n")
}
