package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLoggers(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		Configure(Config{})
		loggersMu.Lock()
		loggers = make(map[string]*logrus.Entry)
		loggersMu.Unlock()
		SetGlobalOutput(os.Stderr)
	})
}

func TestNewLogger(t *testing.T) {
	resetLoggers(t)

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Cached per component
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "module installed",
				Data: logrus.Fields{
					"component": "installer",
					"path":      "/m/a.zip",
				},
			},
			want: []string{"[INFO]", "[installer]", "module installed", "path=/m/a.zip"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "root missing",
				Data:    logrus.Fields{"component": "scanner"},
			},
			want:    []string{"[WARN]", "root missing"},
			notWant: []string{"[scanner]"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Logger:  func() *logrus.Logger { l := logrus.New(); l.SetReportCaller(true); return l }(),
				Level:   logrus.InfoLevel,
				Message: "with caller",
				Data:    logrus.Fields{"component": "events"},
				Caller: &runtime.Frame{
					File:     "/path/to/catalog.go",
					Line:     42,
					Function: "github.com/grovetools/extcore/pkg/events.(*Catalog).Register",
				},
			},
			want: []string{"[catalog.go:42 events.(*Catalog).Register]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	out, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	})
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, strings.Index(s, "alpha="), strings.Index(s, "mid="))
	assert.Less(t, strings.Index(s, "mid="), strings.Index(s, "zeta="))
}

func TestTextFormatterFieldOrder(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	out, err := formatter.Format(&logrus.Entry{
		Level:   logrus.ErrorLevel,
		Message: "install failed",
		Data: logrus.Fields{
			"component":     "installer",
			logrus.ErrorKey: "disk full",
			"attempt":       2,
			"module":        "/m/a.zip",
		},
	})
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, strings.Index(s, "module="), strings.Index(s, "attempt="))
	assert.Less(t, strings.Index(s, "attempt="), strings.Index(s, "error="))
	assert.Contains(t, s, `error="disk full"`)
	assert.NotContains(t, s, "component=")
}

func TestConfigureAppliesToExistingLoggers(t *testing.T) {
	resetLoggers(t)
	t.Setenv(EnvLogLevel, "")

	var buf bytes.Buffer
	SetGlobalOutput(&buf)

	logger := NewLogger("configure-test")
	Configure(Config{
		Level:  "debug",
		Format: FormatConfig{Preset: "simple", StructuredToStderr: "always"},
	})

	logger.Debug("visible after configure")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
	assert.Contains(t, buf.String(), "visible after configure")
}

func TestEnvironmentOverridesLevel(t *testing.T) {
	resetLoggers(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogCaller, "true")

	logger := NewLogger("env-test")
	assert.Equal(t, logrus.ErrorLevel, logger.Logger.GetLevel())
	assert.True(t, logger.Logger.ReportCaller)
}

func TestFileSink(t *testing.T) {
	resetLoggers(t)
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "logs", "extcore.log")
	Configure(Config{
		Level:  "info",
		File:   FileSinkConfig{Enabled: true, Path: path},
		Format: FormatConfig{Preset: "json", StructuredToStderr: "never"},
	})

	NewLogger("file-test").Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
	assert.Contains(t, string(data), `"component":"file-test"`)
}
