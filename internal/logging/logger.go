// Package logging builds the zap loggers shared by the CLI, server and watcher.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"incidentkb/config"
)

// New returns a zap logger for cfg. Development mode uses the human-readable
// console encoder; otherwise JSON.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// Fields converts structured error context into zap fields.
func Fields(ctx map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx))
	for k, v := range ctx {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}
