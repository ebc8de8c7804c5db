// Package logging constructs the process-wide zap logger. It is built once
// at startup and passed explicitly into every component constructor, never
// retrieved from a package-level global (spec §9's anti-singleton note).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docqa/ragcore/internal/config"
)

// New builds a *zap.Logger from the logging section of Config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
