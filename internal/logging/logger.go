// Package logging builds the structured zap logger shared by every relay
// component, with an optional size-rotated log file next to stdout.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the logger is built.
type Options struct {
	// Level is one of debug, info, warn, error (defaults to info).
	Level string
	// Format is "json" or "console" (defaults to console).
	Format string
	// File, when set, receives a copy of every log line and is rotated by size.
	File string
	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int
}

// ParseLevel maps a textual level onto a zap level. Unknown values yield info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New creates a logger writing to stdout and, optionally, to a rotating file.
func New(opts Options) *zap.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit primary sink.
func NewWithWriter(w io.Writer, opts Options) *zap.Logger {
	sink := zapcore.AddSync(w)
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  maxSize,
			Compress: true,
		}))
	}

	core := zapcore.NewCore(newEncoder(opts.Format), sink, zap.NewAtomicLevelAt(ParseLevel(opts.Level)))
	return zap.New(core, zap.AddCaller())
}

func newEncoder(format string) zapcore.Encoder {
	if strings.EqualFold(format, "json") {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return zapcore.NewConsoleEncoder(cfg)
}
