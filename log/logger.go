// Package log provides structured logging with release context.
//
// Two logger variants are available:
//   - Logger: structured zap.Logger for pipeline steps (fields map per entry)
//   - SugaredLogger: printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/zenodo-publisher/types"
)

// Logger provides structured logging with release context.
// Entries carry the project, tag and concept fields once they are known.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger writing JSON lines to os.Stderr.
// Debug entries are dropped unless debug is true.
func NewLogger(meta types.ReleaseMeta, debug bool) *Logger {
	return newLoggerWithWriter(meta, debug, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w (for testing).
func NewLoggerWithWriter(meta types.ReleaseMeta, debug bool, w io.Writer) *Logger {
	return newLoggerWithWriter(meta, debug, w)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
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

func newLoggerWithWriter(meta types.ReleaseMeta, debug bool, w io.Writer) *Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)

	var contextFields []zap.Field
	if meta.Project != "" {
		contextFields = append(contextFields, zap.String("project", meta.Project))
	}
	if meta.Tag != "" {
		contextFields = append(contextFields, zap.String("tag", meta.Tag))
	}
	if meta.ConceptID != "" {
		contextFields = append(contextFields, zap.String("concept_id", meta.ConceptID))
	}

	return &Logger{zap: zap.New(core).With(contextFields...)}
}

// WithTag returns a logger that also carries the release tag.
// The tag is only known once the release step has resolved it.
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("tag", tag))}
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
