// Package logging wraps zap.SugaredLogger with the two output formats this
// codebase's nodes are started with, mirroring the shape of torua's plain
// "log" call sites (one line per lifecycle event: registration, health
// transitions, shutdown) while giving every event structured fields.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the zap encoder used for log output.
type Format string

const (
	// FormatText is human-readable console output, suitable for a
	// developer's terminal.
	FormatText Format = "text"
	// FormatJSON is structured JSON output, suitable for log aggregation
	// in production.
	FormatJSON Format = "json"
)

// Config configures a Logger.
type Config struct {
	Format Format
	Level  zapcore.Level
}

// Logger is the logging handle threaded through every package in this
// module via constructor injection, the same way torua threads *log.Logger
// equivalents (implicitly, the stdlib logger) through its handlers.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a Logger for the given Config. Unknown formats fall back to
// FormatText, matching vex's logger.New default behavior.
func New(cfg Config) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), cfg.Level)
	logger := zap.New(core, zap.AddCaller())

	return &Logger{SugaredLogger: logger.Sugar()}
}

// Nop returns a Logger that discards everything, used by tests that don't
// want to assert on log output.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// ParseLevel maps the LOG_LEVEL values read by cmd/coordinator and
// cmd/shard ("debug", "info", "warn", "error") onto a zapcore.Level,
// defaulting to Info for anything unrecognized.
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
