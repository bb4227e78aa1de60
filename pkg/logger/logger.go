package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global structured logger. Init must be called once at
// process start before any handler runs.
var Log *zap.Logger

// Init builds the global logger. Debug mode uses the development
// config (console encoder, DEBUG level), otherwise production JSON.
func Init(debug bool) {
	var (
		l   *zap.Logger
		err error
	)

	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = cfg.Build()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = cfg.Build()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	Log = l
}

// Sync flushes buffered log entries. Call it on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
