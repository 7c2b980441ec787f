package logging

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap logger with evaluation-specific helpers
type Logger struct {
	zap *zap.Logger
}

// Config holds logging configuration
type Config struct {
	Level     string
	Format    string // "json" or "console"
	Output    string // "stdout" or "stderr"
	AddCaller bool

	// File, when set, receives a JSON copy of every entry with rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*Logger, error) {
	level := parseZapLevel(config.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	out := zapcore.Lock(os.Stdout)
	if config.Output == "stderr" {
		out = zapcore.Lock(os.Stderr)
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, out, level)}

	if config.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if config.AddCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return &Logger{zap: zap.New(zapcore.NewTee(cores...), opts...)}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// FromZap wraps an existing zap logger
func FromZap(l *zap.Logger) *Logger {
	return &Logger{zap: l}
}

// parseZapLevel parses zap level from string
func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(ctx context.Context, requestID string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("request_id", requestID))}
}

// WithFields adds fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return &Logger{zap: l.zap.With(zapFields...)}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zap.Debug(msg, convertToZapFields(args)...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.zap.Info(msg, convertToZapFields(args)...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zap.Warn(msg, convertToZapFields(args)...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.zap.Error(msg, convertToZapFields(args)...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.zap.Fatal(msg, convertToZapFields(args)...)
}

// convertToZapFields converts key/value pairs to zap fields; a trailing key
// without a value is dropped
func convertToZapFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields = append(fields, zap.Any(key, args[i+1]))
		}
	}
	return fields
}

// LogRequest logs an HTTP request
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, requestID string) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
		"request_id":  requestID,
	}

	logger := l.WithFields(fields)
	logger.Info("HTTP request completed")
}

// LogConfigLoaded logs the configuration a process started with
func (l *Logger) LogConfigLoaded(path string, scenarios []string) {
	l.zap.Info("WBAN config loaded",
		zap.String("path", path),
		zap.Strings("scenarios", scenarios),
	)
}

// LogEvaluation logs a single metrics decomposition
func (l *Logger) LogEvaluation(ctx context.Context, scenario string, fitness, energyJ, reliability, geometric, lifetime float64, requestID string) {
	l.zap.Debug("Placement evaluated",
		zap.String("scenario", scenario),
		zap.Float64("fitness", fitness),
		zap.Float64("energy_j", energyJ),
		zap.Float64("reliability_penalty", reliability),
		zap.Float64("geometric_penalty", geometric),
		zap.Float64("lifetime_rounds", lifetime),
		zap.String("request_id", requestID),
	)
}

// LogBatch logs the outcome of a population evaluation
func (l *Logger) LogBatch(ctx context.Context, scenario string, size, invalid int, best float64, duration time.Duration, requestID string) {
	l.zap.Info("Batch evaluated",
		zap.String("scenario", scenario),
		zap.Int("size", size),
		zap.Int("invalid_geometry", invalid),
		zap.Float64("best_fitness", best),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
		zap.String("request_id", requestID),
	)
}

// Sync syncs the logger
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
