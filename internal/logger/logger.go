package logger

import (
	"fmt"
	"strings"

	"pantry-backend/internal/config"

	"go.uber.org/zap"
)

// New builds the process logger. Development environments get a console
// encoder with debug level unless LOG_LEVEL says otherwise.
func New(cfg config.LoggerConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.AppEnv, "development") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = level
	}

	switch strings.ToLower(cfg.Encoding) {
	case "", "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
	default:
		return nil, fmt.Errorf("unknown log encoding: %s", cfg.Encoding)
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
