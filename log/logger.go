// Package log provides structured logging with session context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the session runtime (structured fields)
//   - SugaredLogger: printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/justapithecus/flanker/types"
)

// Logger provides structured logging with session context.
// All entries carry the session identity fields when a session is known.
type Logger struct {
	zap  *zap.Logger
	file *lumberjack.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Options configures logger outputs.
type Options struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	// Empty means debug.
	Level string
	// Console receives JSON entries. Nil disables console output, which the
	// terminal backend requires because it owns the screen.
	Console io.Writer
	// File is the path of the rotating session log. Empty disables it.
	File string
	// MaxSizeMB is the rotation size of File in megabytes.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
	// MaxAgeDays is the retention of rotated files.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// DefaultOptions logs debug and above to stderr only.
func DefaultOptions() Options {
	return Options{
		Console:    os.Stderr,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
	}
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:     "timestamp",
	LevelKey:    "level",
	MessageKey:  "message",
	EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
	EncodeLevel: zapcore.LowercaseLevelEncoder,
}

// NewLogger creates a logger with session context writing to os.Stderr.
// session may be nil for surfaces that run outside a session.
func NewLogger(session *types.Session) *Logger {
	return newLoggerWithWriter(session, os.Stderr)
}

// New creates a logger with the given outputs.
// Console and file cores are teed; each entry reaches both.
func New(session *types.Session, opts Options) (*Logger, error) {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, &types.ConfigurationError{Field: "logging.level", Msg: err.Error()}
		}
		level = parsed
	}

	var cores []zapcore.Core
	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(opts.Console),
			level,
		))
	}

	var file *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			level,
		))
	}

	if len(cores) == 0 {
		return NewNop(), nil
	}
	zl := zap.New(zapcore.NewTee(cores...)).With(sessionFields(session)...)
	return &Logger{zap: zl, file: file}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// WithSession returns a logger carrying the session identity fields.
func (l *Logger) WithSession(session *types.Session) *Logger {
	return &Logger{zap: l.zap.With(sessionFields(session)...), file: l.file}
}

func newLoggerWithWriter(session *types.Session, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
	return &Logger{zap: zap.New(core).With(sessionFields(session)...)}
}

func sessionFields(session *types.Session) []zap.Field {
	if session == nil {
		return nil
	}
	return []zap.Field{
		zap.String("session_id", session.ID),
		zap.String("participant", session.Participant.Code()),
	}
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

// Close flushes buffered entries and closes the session log file.
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
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
