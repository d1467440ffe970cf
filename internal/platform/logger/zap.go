package logger

import (
	"strings"

	"buildinghub_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New initializes a Zap logger from the application configuration.
// GIN_MODE picks the production or development preset, LOG_LEVEL and
// LOG_FORMAT override level and encoding.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.GinMode == "release" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	if strings.EqualFold(cfg.LogFormat, "json") {
		zapConfig.Encoding = "json"
	} else {
		zapConfig.Encoding = "console"
		// console encoding never colors json sinks
		if cfg.GinMode == "release" {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	return zapConfig.Build()
}

// ParseLevel maps a LOG_LEVEL string to a zap level, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
