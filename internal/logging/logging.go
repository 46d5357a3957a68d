// Package logging provides the structured logger used across the orders service.
//
// Loggers are named per component and take their fields as a Fields map:
//
//	logger := logging.NewLoggerV2("order-service")
//	logger.Info("Order created", logging.Fields{"order_id": id})
package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields holds structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init configures the process-wide zap logger. Format "json" selects the
// production encoder, anything else the console encoder.
func Init(level, format string) error {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	base = z
	mu.Unlock()
	return nil
}

// Sync flushes buffered entries of the process-wide logger.
func Sync() error {
	return current().Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// LoggerV2 is a named structured logger.
type LoggerV2 struct {
	z *zap.Logger
}

// NewLoggerV2 returns a logger named after the component it serves.
func NewLoggerV2(name string) *LoggerV2 {
	return &LoggerV2{z: current().Named(name)}
}

// NewFromZap wraps an existing zap logger, mostly for tests using zaptest.
func NewFromZap(z *zap.Logger) *LoggerV2 {
	return &LoggerV2{z: z}
}

// With returns a child logger that always carries fields.
func (l *LoggerV2) With(fields Fields) *LoggerV2 {
	return &LoggerV2{z: l.z.With(convertFields(fields)...)}
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	l.z.Debug(msg, convertFields(fields...)...)
}

func (l *LoggerV2) Info(msg string, fields ...Fields) {
	l.z.Info(msg, convertFields(fields...)...)
}

func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	l.z.Warn(msg, convertFields(fields...)...)
}

func (l *LoggerV2) Error(msg string, fields ...Fields) {
	l.z.Error(msg, convertFields(fields...)...)
}

// Fatal logs and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	l.z.Fatal(msg, convertFields(fields...)...)
}

// Info logs through the process-wide logger.
func Info(msg string, fields ...Fields) {
	current().Info(msg, convertFields(fields...)...)
}

// Infof logs a formatted message through the process-wide logger.
// Prefer LoggerV2 with Fields for anything that needs to be queried.
func Infof(format string, args ...interface{}) {
	current().Sugar().Infof(format, args...)
}

func convertFields(fields ...Fields) []zap.Field {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	if n == 0 {
		return nil
	}

	out := make([]zap.Field, 0, n)
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := f[k].(type) {
			case error:
				out = append(out, zap.NamedError(k, v))
			default:
				out = append(out, zap.Any(k, v))
			}
		}
	}
	return out
}
