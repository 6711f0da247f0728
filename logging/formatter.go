package logging

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var (
	componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	levelStyles    = map[logrus.Level]lipgloss.Style{
		logrus.PanicLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		logrus.FatalLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		logrus.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		logrus.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

// leadingFields are printed first, in this order, when present.
var leadingFields = []string{"module", "listener", "event", "root"}

// TextFormatter renders entries as a single human readable line.
type TextFormatter struct {
	Config FormatConfig
}

// Format renders a single log entry.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}

	level := strings.ToUpper(entry.Level.String())
	if entry.Level == logrus.WarnLevel {
		level = "WARN"
	}
	b.WriteString(levelStyles[entry.Level].Render("[" + level + "]"))

	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		fmt.Fprintf(&b, " [%s]", componentStyle.Render(fmt.Sprint(component)))
	}

	if entry.HasCaller() {
		fmt.Fprintf(&b, " [%s:%d %s]", filepath.Base(entry.Caller.File), entry.Caller.Line, filepath.Base(entry.Caller.Function))
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	for _, key := range fieldOrder(entry.Data) {
		fmt.Fprintf(&b, " %s=%s", key, formatValue(entry.Data[key]))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// fieldOrder returns the leading fields first, then the rest sorted, with
// the error last.
func fieldOrder(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for _, key := range leadingFields {
		if _, ok := data[key]; ok {
			keys = append(keys, key)
		}
	}

	rest := make([]string, 0, len(data))
	for key := range data {
		if key == "component" || key == logrus.ErrorKey || slices.Contains(leadingFields, key) {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	if _, ok := data[logrus.ErrorKey]; ok {
		keys = append(keys, logrus.ErrorKey)
	}
	return keys
}

// formatValue quotes values containing whitespace.
func formatValue(v interface{}) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
