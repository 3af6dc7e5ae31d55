// ABOUTME: Process logger writing to a rotating file and, in debug, to stderr.
// ABOUTME: Built on charmbracelet/log with lumberjack rotation.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance. It discards output until Init runs.
var Logger = log.NewWithOptions(io.Discard, log.Options{})

// Config holds logger configuration
type Config struct {
	Debug  bool
	LogDir string
	// Stderr overrides the console writer used in debug mode.
	Stderr io.Writer
}

// Init builds the global logger and returns it for injection.
func Init(cfg Config) (*log.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0750); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "fitlog.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.WarnLevel
	var writer io.Writer = fileWriter
	if cfg.Debug {
		level = log.DebugLevel
		stderr := cfg.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writer = io.MultiWriter(stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "fitlog",
	})
	return Logger, nil
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}
