package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides logging functionality
type Logger struct {
	*zap.Logger
	path string
}

// Options controls where and how much is logged
type Options struct {
	// Level is one of debug, info, warn, error
	Level string
	// Dir receives a timestamped log file when set
	Dir string
	// Quiet disables the console sink
	Quiet bool
}

// New creates a new logger instance
func New(opts Options) (*Logger, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cfg.OutputPaths = nil
	if !opts.Quiet {
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}
	if level != zap.DebugLevel {
		cfg.EncoderConfig.EncodeCaller = nil
	}

	var logPath string
	if opts.Dir != "" {
		// Create log directory if it doesn't exist
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		logPath = filepath.Join(opts.Dir, fmt.Sprintf("fuzzer_%s.log", timestamp))
		cfg.OutputPaths = append(cfg.OutputPaths, logPath)
	}
	if len(cfg.OutputPaths) == 0 {
		return &Logger{Logger: zap.NewNop()}, nil
	}

	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: zl, path: logPath}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Path returns the log file path, empty when logging to the console only
func (l *Logger) Path() string {
	return l.path
}

// Close flushes buffered entries
func (l *Logger) Close() error {
	err := l.Sync()
	if l.path == "" {
		// stderr cannot always be synced
		return nil
	}
	return err
}

// LogLLMInteraction logs an LLM interaction
func (l *Logger) LogLLMInteraction(operation string, input any, output any, err error) {
	if err != nil {
		l.Warn("llm interaction failed",
			zap.String("operation", operation),
			zap.Any("input", input),
			zap.Error(err))
		return
	}
	l.Debug("llm interaction",
		zap.String("operation", operation),
		zap.Any("input", input),
		zap.Any("output", output))
}
