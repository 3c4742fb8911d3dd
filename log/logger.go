// Package log provides structured logging with request context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the request runtime (structured fields)
//   - SugaredLogger: printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed. The transfer and
// form packages never log; the runtime logs on their behalf.
package log

import (
	"io"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/sluice/types"
)

// Logger provides structured logging with request context.
// All entries carry request_id, and remote_addr when known.
type Logger struct {
	zap    *zap.Logger
	fields []zap.Field
	level  zapcore.Level
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger with request context writing to os.Stderr.
func NewLogger(meta *types.RequestMeta) *Logger {
	return newLoggerWithWriter(meta, os.Stderr, zapcore.DebugLevel)
}

// NewLoggerAt is NewLogger with a minimum level and writer.
func NewLoggerAt(meta *types.RequestMeta, w io.Writer, level zapcore.Level) *Logger {
	return newLoggerWithWriter(meta, w, level)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// ParseLevel parses a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (zapcore.Level, error) {
	return zapcore.ParseLevel(s)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// WithOutput returns a new logger with a different output writer.
// Context fields and level are kept.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return build(w, l.level, l.fields)
}

// With returns a logger with additional context fields.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{
		zap:    l.zap.With(zf...),
		fields: append(slices.Clip(l.fields), zf...),
		level:  l.level,
	}
}

func newLoggerWithWriter(meta *types.RequestMeta, w io.Writer, level zapcore.Level) *Logger {
	var contextFields []zap.Field
	if meta != nil {
		contextFields = append(contextFields, zap.String("request_id", meta.RequestID))
		if meta.RemoteAddr != nil {
			contextFields = append(contextFields, zap.String("remote_addr", *meta.RemoteAddr))
		}
	}
	return build(w, level, contextFields)
}

func build(w io.Writer, level zapcore.Level, fields []zap.Field) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return &Logger{zap: zap.New(core).With(fields...), fields: fields, level: level}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
