package library

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Debug mode gets a colored console
// encoder; anything else logs JSON at info level.
func NewLogger(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "debug" || mode == "" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	return cfg.Build()
}
