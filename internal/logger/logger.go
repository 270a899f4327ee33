// Package logger builds the process-wide zap.Logger, following the
// same debug/production split the rest of the stack uses at startup.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's verbosity and encoding.
type Config struct {
	// Debug enables development mode (human-readable console encoding,
	// debug level, stack traces on warn).
	Debug bool
	// Format overrides the encoding explicitly ("json" or "console").
	// Empty defaults to "console" when Debug is set, "json" otherwise.
	Format string
	// Level overrides the minimum log level ("debug", "info", "warn",
	// "error"). Empty defaults to "debug" when Debug is set, "info"
	// otherwise.
	Level string
}

// New builds a *zap.Logger for cfg.
func New(cfg *Config) (*zap.Logger, error) {
	if cfg.Debug {
		zapCfg := zap.NewDevelopmentConfig()
		applyOverrides(&zapCfg, cfg)
		return zapCfg.Build()
	}

	zapCfg := zap.NewProductionConfig()
	applyOverrides(&zapCfg, cfg)
	return zapCfg.Build()
}

func applyOverrides(zapCfg *zap.Config, cfg *Config) {
	if cfg.Format != "" {
		zapCfg.Encoding = cfg.Format
	}
	if cfg.Level != "" {
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
}

// MustNew builds a logger or panics, for use at process startup before
// any request-scoped error handling exists.
func MustNew(cfg *Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("logger: %v", err))
	}
	return l
}
