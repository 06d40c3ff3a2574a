// Package logging provides categorized structured logging for grouplock.
// Every subsystem asks for a logger by Category; all of them share one zap core
// configured once at startup by Initialize.
// Before Initialize is called, Get returns no-op loggers so packages can log
// unconditionally (tests never configure logging).
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config loading
	CategoryBrowser      Category = "browser"      // Browser process and session lifecycle
	CategoryLocator      Category = "locator"      // Element discovery heuristics
	CategoryDispatch     Category = "dispatch"     // Message dispatch loop
	CategoryWatchdog     Category = "watchdog"     // Group name watchdog and reverter
	CategoryOrchestrator Category = "orchestrator" // Task start/stop
	CategoryStore        Category = "store"        // Account store
	CategoryApp          Category = "app"          // Application service
	CategoryUI           Category = "ui"           // Dashboard
	CategoryHeuristics   Category = "heuristics"   // Selector profile loading and reload
)

// Config controls how the root logger is built.
type Config struct {
	Level string // debug, info, warn, error
	JSON  bool
	File  string // optional log file; empty means stderr only
	// Quiet drops the stderr sink. Used by the dashboard so log lines do not
	// tear the terminal UI.
	Quiet   bool
	Verbose bool
}

var (
	rootMu  sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the root logger. It may be called again to reconfigure.
func Initialize(cfg Config) error {
	zc := zap.NewProductionConfig()
	if cfg.Verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level, cfg.Verbose))
	if cfg.JSON {
		zc.Encoding = "json"
	} else {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var outputs []string
	if !cfg.Quiet {
		outputs = append(outputs, "stderr")
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		outputs = append(outputs, cfg.File)
	}
	if len(outputs) == 0 {
		replaceRoot(zap.NewNop())
		return nil
	}
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = outputs

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	replaceRoot(logger)
	return nil
}

func parseLevel(level string, verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func replaceRoot(l *zap.Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	_ = root.Sync()
	root = l
	loggers = make(map[Category]*zap.Logger)
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *zap.Logger {
	rootMu.RLock()
	if l, ok := loggers[category]; ok {
		rootMu.RUnlock()
		return l
	}
	rootMu.RUnlock()

	rootMu.Lock()
	defer rootMu.Unlock()
	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries (call at shutdown).
func Sync() {
	rootMu.RLock()
	defer rootMu.RUnlock()
	_ = root.Sync()
}

// Boot logs to the boot category
func Boot(msg string, fields ...zap.Field) {
	Get(CategoryBoot).Info(msg, fields...)
}

// BootWarn logs a warning to the boot category
func BootWarn(msg string, fields ...zap.Field) {
	Get(CategoryBoot).Warn(msg, fields...)
}
