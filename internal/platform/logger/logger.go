// Package logger builds the service's zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tunes the logger beyond the environment defaults.
type Options struct {
	// File, when set, receives a JSON copy of every entry with size based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger configured for the given environment.
func New(env string) (*zap.Logger, error) {
	return NewWithOptions(env, Options{})
}

// NewNamed returns a logger for env with the service name attached to every entry.
func NewNamed(env, service string) (*zap.Logger, error) {
	log, err := New(env)
	if err != nil {
		return nil, err
	}
	return log.Named(service).With(zap.String("service", service)), nil
}

// NewWithOptions returns a logger for env that also writes to a rotating file when opts.File is set.
func NewWithOptions(env string, opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" || env == "test" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.File == "" {
		return base, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    withDefault(opts.MaxSizeMB, 100),
		MaxBackups: withDefault(opts.MaxBackups, 5),
		MaxAge:     withDefault(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	fileCore := zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), cfg.Level)

	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
