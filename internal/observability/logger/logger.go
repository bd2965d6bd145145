// Package logger provides a process-wide zap logger.
//
// Init is called once from main; everything else calls L, Named or From(ctx).
// When Config.File is set, entries are also written as JSON to a rotating file.
package logger

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the logger.
type Config struct {
	// Env is "dev" (colored console) or "prod" (JSON). Default "dev".
	Env string
	// Level is debug, info, warn or error. Default info.
	Level string

	// File enables a rotating JSON log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	once     sync.Once
	instance *zap.Logger
)

// Init builds the singleton. Only the first call has an effect.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L returns the singleton, initializing a dev/info logger if Init was never called.
func L() *zap.Logger {
	Init(Config{Env: "dev", Level: "info"})
	return instance
}

// Named returns a child logger tagged with a component name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With returns a child logger carrying fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

type ctxKey struct{}

// ToContext stores l in ctx.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger stored in ctx, or the singleton.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return L()
}

func build(cfg Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encCfg zapcore.EncoderConfig
	var consoleEnc zapcore.Encoder
	if strings.ToLower(cfg.Env) == "prod" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		writer := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(writer), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
