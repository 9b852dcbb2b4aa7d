package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process-wide zap logger. Level and encoding come from
// the environment-driven settings so production stays JSON-structured
// while development can switch to console output.
func Init(level, encoding string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if strings.EqualFold(encoding, "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}
