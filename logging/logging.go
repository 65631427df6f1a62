package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zorssms/config"
)

// New builds the process logger. Development mode uses the console encoder
// with stack traces on warnings; otherwise JSON to stderr.
func New(cfg *config.Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}
