// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type zapLogger struct {
	serviceName string
	logger      *zap.Logger
}

// New returns a JSON logger writing to stdout. Every entry carries the
// service name.
func New(serviceName string) Logger {
	return NewWithLevel(serviceName, levelFromEnv())
}

// NewWithLevel is New with an explicit minimum level.
func NewWithLevel(serviceName string, level zapcore.Level) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		level,
	)

	return &zapLogger{
		serviceName: serviceName,
		logger:      zap.New(core).With(zap.String("service", serviceName)),
	}
}

func levelFromEnv() zapcore.Level {
	lvl := zapcore.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return zapcore.InfoLevel
		}
	}
	return lvl
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *zapLogger) Info(message string, fields map[string]interface{}) {
	l.logger.Info(message, toZapFields(fields)...)
}

func (l *zapLogger) Error(message string, fields map[string]interface{}) {
	l.logger.Error(message, toZapFields(fields)...)
}

func (l *zapLogger) Warn(message string, fields map[string]interface{}) {
	l.logger.Warn(message, toZapFields(fields)...)
}

func (l *zapLogger) Debug(message string, fields map[string]interface{}) {
	l.logger.Debug(message, toZapFields(fields)...)
}

func (l *zapLogger) Fatal(message string, fields map[string]interface{}) {
	l.logger.Fatal(message, toZapFields(fields)...)
}

// Sync flushes buffered entries. Safe to call on any Logger.
func Sync(l Logger) {
	if zl, ok := l.(*zapLogger); ok {
		_ = zl.logger.Sync()
	}
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}

// With returns a logger that adds fields to every entry.
func With(l Logger, fields map[string]interface{}) Logger {
	if zl, ok := l.(*zapLogger); ok {
		return &zapLogger{serviceName: zl.serviceName, logger: zl.logger.With(toZapFields(fields)...)}
	}
	return l
}
