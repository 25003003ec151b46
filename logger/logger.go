package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It discards everything until Init is called.
var Log = zap.NewNop().Sugar()

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// Init builds the global logger. development selects the console encoder.
func Init(levelName string, development bool) error {
	if err := SetLevel(levelName); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// SetLevel changes the level of the running logger.
func SetLevel(levelName string) error {
	if levelName == "" {
		return nil
	}
	lvl, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level reports the current level.
func Level() zapcore.Level {
	return level.Level()
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
