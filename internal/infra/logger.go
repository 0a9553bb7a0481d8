package infra

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger собирает zap логгер по LoggerConfig.
// format=console - человекочитаемый вывод для локальной разработки, иначе JSON.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: bad level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}
