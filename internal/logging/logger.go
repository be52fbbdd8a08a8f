// Package logging builds the zap loggers used across channel-scout.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootName prefixes every subsystem logger derived with Named (progress,
// api, youtube, ...).
const rootName = "scout"

// New builds the root logger. Development mode favors an interactive crawl
// run: colored console output, debug level, no sampling. Production mode
// emits JSON at info level. Both use ISO-8601 timestamps under "ts" so crawl
// logs line up with the RFC 3339 timestamps in the history document.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named(rootName), nil
}
