package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const (
	EnvLogLevel  = "EXTCORE_LOG_LEVEL"
	EnvLogCaller = "EXTCORE_LOG_CALLER"
	EnvDebug     = "EXTCORE_DEBUG"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	active    Config
	fileSink  *os.File
)

// Configure applies cfg to every logger created so far and to all future ones.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	active = cfg
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
	for _, entry := range loggers {
		apply(entry.Logger, cfg)
	}
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	apply(logger, active)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// apply configures level, caller reporting, formatter and sinks. Callers hold loggersMu.
func apply(logger *logrus.Logger, cfg Config) {
	levelStr := "info"
	if env := os.Getenv(EnvLogLevel); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetReportCaller(os.Getenv(EnvLogCaller) == "true" || cfg.ReportCaller)

	switch cfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: cfg.Format})
	}

	var writers []io.Writer
	if f := openFileSink(logger, cfg.File); f != nil {
		writers = append(writers, f)
	}
	if shouldLogToStderr(level, cfg.Format.StructuredToStderr) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

// openFileSink opens the shared log file once per configuration.
func openFileSink(logger *logrus.Logger, cfg FileSinkConfig) io.Writer {
	if !cfg.Enabled || cfg.Path == "" {
		return nil
	}
	if fileSink != nil {
		return fileSink
	}
	path := expandPath(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warnf("Failed to open log file %s: %v", path, err)
		return nil
	}
	fileSink = f
	return f
}

func shouldLogToStderr(level logrus.Level, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		// auto: debug runs and non-interactive sessions (pipes, CI) get structured logs
		isDebug := os.Getenv(EnvDebug) == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
