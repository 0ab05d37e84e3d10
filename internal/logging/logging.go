// Package logging builds the zap loggers used across wamctl.
package logging

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and the optional rotating log file.
type Config struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	JSON       bool   `yaml:"json,omitempty"`
}

func DefaultConfig() Config {
	return Config{Level: "info", MaxSizeMB: 10, MaxBackups: 3}
}

// NewEncoderConfig matches zap's development layout with production keys
// and colored capital levels.
func NewEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New returns a logger writing to stdout and, when cfg.File is set, to a
// rotating file. The file copy is never colored.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "logging: level %q", cfg.Level)
	}
	enabler := zap.NewAtomicLevelAt(level)

	consoleEnc := NewEncoderConfig()
	var stdout zapcore.Encoder
	if cfg.JSON {
		consoleEnc.EncodeLevel = zapcore.CapitalLevelEncoder
		stdout = zapcore.NewJSONEncoder(consoleEnc)
	} else {
		stdout = zapcore.NewConsoleEncoder(consoleEnc)
	}
	cores := []zapcore.Core{zapcore.NewCore(stdout, zapcore.Lock(os.Stdout), enabler)}

	if cfg.File != "" {
		fileEnc := NewEncoderConfig()
		fileEnc.EncodeLevel = zapcore.CapitalLevelEncoder
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), w, enabler))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// NewTestLogger returns a debug logger that writes through tb.
func NewTestLogger(tb testing.TB) *zap.Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also keeps every entry in
// memory for assertions.
func NewObservedTestLogger(tb testing.TB) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel))
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})), logs
}
