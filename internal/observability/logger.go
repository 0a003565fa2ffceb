// Package observability provides structured logging for the launchpad.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is re-exported so callers don't import zapcore directly.
type Field = zapcore.Field

// Convenience field constructors.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Duration = zap.Duration
	Err      = zap.Error
)

// Logger is the logging interface used across the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Named(name string) Logger
	Sync() error
}

// Config defines logger configuration.
type Config struct {
	Level      string `json:"level,omitempty"`       // debug, info, warn, error
	FilePath   string `json:"file_path,omitempty"`   // if set, logs rotate via lumberjack
	MaxSizeMB  int    `json:"max_size_mb,omitempty"` // rotation threshold
	MaxBackups int    `json:"max_backups,omitempty"`
	Console    bool   `json:"console,omitempty"` // also log to stderr
}

type logger struct {
	zap *zap.Logger
}

// New creates a Logger from the given configuration.
func New(cfg Config) (Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level))
	}
	if cfg.Console || cfg.FilePath == "" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	return &logger{zap: zap.New(zapcore.NewTee(cores...))}, nil
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() Logger {
	return &logger{zap: zap.NewNop()}
}

func (l *logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.zap.Error(msg, fields...) }

func (l *logger) With(fields ...Field) Logger { return &logger{zap: l.zap.With(fields...)} }
func (l *logger) Named(name string) Logger    { return &logger{zap: l.zap.Named(name)} }
func (l *logger) Sync() error                 { return l.zap.Sync() }
