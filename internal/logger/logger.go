// Package logger builds the zap loggers used by the CLI and services.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// Format types for logging.
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Level       zapcore.Level
}

// New creates a logger with the given configuration. Output defaults to
// stderr so stdout stays free for command results.
func New(cfg Config) *zap.Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	// Auto-detect format based on environment if not specified.
	if cfg.Format == "" {
		if cfg.Environment == "production" {
			cfg.Format = FormatJSON
		} else {
			cfg.Format = FormatPretty
		}
	}

	var encoder zapcore.Encoder
	if cfg.Format == FormatJSON {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Writer), cfg.Level)
	return zap.New(core)
}

// ParseLevel converts a string to a zap level. Unknown names yield info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// WithCommand tags a logger with an audit command's public id.
func WithCommand(log *zap.Logger, publicID string) *zap.Logger {
	return log.With(zap.String("command", publicID))
}
