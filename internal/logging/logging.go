// Package logging builds the zap loggers used across jointtorque.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// NewConfig returns a console config with ISO8601 timestamps, coloured
// levels and no stacktraces. Logs go to stderr so stdout carries only the
// iteration table and charts.
func NewConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// ParseLevel accepts debug, info, warn and error (case-insensitive).
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("logging: unknown level %q", s)
	}
	return level, nil
}

// New returns a named sugared logger at the given level.
func New(name, level string) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger, err := NewConfig(lvl).Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(name).Sugar(), nil
}

// NewTest returns a logger that writes through t.Log. Both *testing.T and
// GinkgoT() satisfy zaptest.TestingT.
func NewTest(t zaptest.TestingT) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}
