package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	ServiceName string
	Development bool
}

var (
	global *zap.Logger
	once   sync.Once
)

// Init builds the global logger. Safe to call once at startup.
func Init(cfg *Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	l, err := zapCfg.Build(zap.AddCallerSkip(0))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}

	once.Do(func() { global = l })
	zap.ReplaceGlobals(l)
	return l, nil
}

// Get returns the global logger, falling back to a no-op logger before Init.
func Get() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// WithTrace returns a logger annotated with the trace and span IDs from ctx,
// extracted by the caller. Fields with empty values are skipped.
func WithTrace(traceID, spanID string) *zap.Logger {
	l := Get()
	if traceID != "" {
		l = l.With(zap.String("trace_id", traceID))
	}
	if spanID != "" {
		l = l.With(zap.String("span_id", spanID))
	}
	return l
}

// Sync flushes any buffered log entries.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

// FromContext returns the logger for the request. Today that is the global
// logger regardless of ctx.
func FromContext(ctx context.Context) *zap.Logger {
	return Get()
}
