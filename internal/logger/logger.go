// Package logger builds the process zap logger from config.
package logger

import (
	"fmt"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a json logger when cfg.Format is "json" and a console logger
// otherwise. An empty level keeps the preset's default.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build(zap.Fields(zap.String("service", "nimo-hr")))
}
