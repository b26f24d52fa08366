// Package logging provides structured diagnostics for logexplain.
//
// Diagnostics never share a stream with explanations: the console core writes
// to stderr (or the configured Output) and an optional file core writes JSONL
// through a rotating lumberjack writer.
//
// Log Format (file core):
//
//	{"level":"info","timestamp":"2024-01-15T10:30:00.000Z","service":"logexplain","msg":"completion_succeeded","run_id":"..."}
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName is attached to every log entry.
const ServiceName = "logexplain"

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// LogDir is the directory for log files
	LogDir string
	// LogFile is the log filename (not full path)
	LogFile string
	// MaxSizeMB is the maximum size in MB before rotation
	MaxSizeMB int
	// MaxBackups is the number of backup files to keep
	MaxBackups int
	// MaxAgeDays is the maximum age in days to retain logs
	MaxAgeDays int
	// EnableConsole enables console output
	EnableConsole bool
	// EnableFile enables file output
	EnableFile bool
	// ConsoleFormat is the console format (json, plain)
	ConsoleFormat string
	// Output receives console entries; nil means stderr
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:         "warn",
		LogDir:        "logs",
		LogFile:       "logexplain.jsonl",
		MaxSizeMB:     10,
		MaxBackups:    5,
		MaxAgeDays:    30,
		EnableConsole: true,
		EnableFile:    false,
		ConsoleFormat: "plain",
	}
}

// ForFile points the file core at path, splitting it into LogDir and LogFile.
func (c *Config) ForFile(path string) *Config {
	if path == "" {
		c.EnableFile = false
		return c
	}
	c.EnableFile = true
	c.LogDir = filepath.Dir(path)
	c.LogFile = filepath.Base(path)
	return c
}

var (
	// globalLogger is the package-level logger instance
	globalLogger *zap.Logger
	// fileWriter holds the rotating file writer for cleanup
	fileWriter *lumberjack.Logger
)

// Setup initializes the global logger with the given configuration.
// Calling Setup again replaces the previous logger and closes its file writer.
func Setup(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = zapcore.WarnLevel
	}

	jsonEncoder := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleEncoder := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	_ = closeFileWriter()

	var cores []zapcore.Core

	if cfg.EnableFile {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return err
		}

		fileWriter = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, cfg.LogFile),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
			LocalTime:  false,
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonEncoder),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	if cfg.EnableConsole {
		var encoder zapcore.Encoder
		if cfg.ConsoleFormat == "json" {
			encoder = zapcore.NewJSONEncoder(jsonEncoder)
		} else {
			encoder = zapcore.NewConsoleEncoder(consoleEncoder)
		}

		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}

		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(out), level))
	}

	core := zapcore.NewTee(cores...)

	hostname, _ := os.Hostname()
	globalLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).With(
		zap.String("service", ServiceName),
		zap.String("hostname", hostname),
		zap.Int("pid", os.Getpid()),
	)

	return nil
}

// parseLevel converts a string level to zapcore.Level.
func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

// L returns the global logger.
func L() *zap.Logger {
	if globalLogger == nil {
		_ = Setup(DefaultConfig())
	}
	return globalLogger
}

// WithContext creates a child logger tagged with a run identifier and operation.
func WithContext(runID string, operation string) *zap.Logger {
	return L().With(
		zap.String("run_id", runID),
		zap.String("operation", operation),
	)
}

// Sync flushes any buffered log entries.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// Close flushes the logger and releases the rotating file writer.
// It is safe to call more than once.
func Close() error {
	if globalLogger != nil {
		// Sync on a console core bound to a terminal reports EINVAL; ignore it.
		_ = globalLogger.Sync()
	}
	return closeFileWriter()
}

func closeFileWriter() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Field constructors for common log fields

// Path returns a field for file paths.
func Path(path string) zap.Field {
	return zap.String("path", path)
}

// Count returns a field for counts/quantities.
func Count(n int) zap.Field {
	return zap.Int("count", n)
}

// Duration returns a field for time durations.
func Duration(d time.Duration) zap.Field {
	return zap.Duration("duration", d)
}

// ErrorCode returns a field for coded errors.
func ErrorCode(code string) zap.Field {
	return zap.String("error_code", code)
}

// Source returns a field for input sources.
func Source(src string) zap.Field {
	return zap.String("source", src)
}

// Model returns a field for the completion model identifier.
func Model(model string) zap.Field {
	return zap.String("model", model)
}

// LineNumber returns a field for 1-based input line numbers.
func LineNumber(n int) zap.Field {
	return zap.Int("line_number", n)
}

// EntryLevel returns a field for the severity found in a log entry.
func EntryLevel(level string) zap.Field {
	return zap.String("entry_level", level)
}

// Tokens returns fields for completion token usage.
func Tokens(prompt, completion int) zap.Field {
	return zap.Dict("tokens",
		zap.Int("prompt", prompt),
		zap.Int("completion", completion),
	)
}
