// Package providers contains dependency injection providers for the catalog.
package providers

import (
	"io"

	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/logger"
)

// Options are the per-invocation settings taken from the command line.
type Options struct {
	Root        string    // Repository root
	Verbose     bool      // Force debug logging
	MetricsFile string    // Overrides metrics_file from the global config
	LogWriter   io.Writer // Defaults to stderr
}

// ProvideGlobalConfig provides the user's global configuration.
func ProvideGlobalConfig(i do.Injector) (*config.GlobalConfig, error) {
	return config.LoadGlobalConfig()
}

// ProvideConfig provides the repository configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[Options](i)
	return config.Load(opts.Root)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*zap.Logger, error) {
	opts := do.MustInvoke[Options](i)
	global := do.MustInvoke[*config.GlobalConfig](i)

	level := logger.ParseLevel(global.LogLevel)
	if opts.Verbose {
		level = zap.DebugLevel
	}
	return logger.New(logger.Config{
		Writer: opts.LogWriter,
		Format: global.LogFormat,
		Level:  level,
	}), nil
}
