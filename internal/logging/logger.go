// Package logging builds the zap loggers used across fssim. Every logger is
// named after a category so a run's output can be filtered per concern.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fssim/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategorySimulation Category = "simulation" // Scheduler and action execution
	CategoryVerify     Category = "verify"     // Final tree comparison
	CategoryBackend    Category = "backend"    // Backend construction and teardown
	CategoryCLI        Category = "cli"        // Command handling
)

// Categories returns every known category.
func Categories() []Category {
	return []Category{CategorySimulation, CategoryVerify, CategoryBackend, CategoryCLI}
}

// ParseLevel maps a config level name onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds the root logger described by cfg. Console format writes
// human-readable lines to stderr; json writes production-style records.
// When cfg.File is set the same records are also appended there.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return filterCategories(logger, cfg), nil
}

// Named returns the category's child logger. Disabled categories get a
// no-op logger.
func Named(logger *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if logger == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return logger.Named(string(category))
}

func filterCategories(logger *zap.Logger, cfg config.LoggingConfig) *zap.Logger {
	if len(cfg.Categories) == 0 {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &categoryCore{Core: core, cfg: cfg}
	}))
}

// categoryCore drops entries whose logger name starts with a disabled category.
type categoryCore struct {
	zapcore.Core
	cfg config.LoggingConfig
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{Core: c.Core.With(fields), cfg: c.cfg}
}

func (c *categoryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	name := ent.LoggerName
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	if name != "" && !c.cfg.IsCategoryEnabled(name) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
