package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryKinds(t *testing.T) {
	f := NewFactory()
	assert.Equal(t, []string{KindExec, KindLog}, f.Kinds())

	f.Register("noop", func(Descriptor) (Listener, error) {
		return ListenerFunc(func(context.Context, *Event) error { return nil }), nil
	})
	assert.Contains(t, f.Kinds(), "noop")

	f.Register("nil", func(Descriptor) (Listener, error) { return nil, nil })
	_, err := f.Build(Descriptor{Name: "n", Kind: "nil"})
	assert.Error(t, err)
}

func TestLogListener(t *testing.T) {
	logger, hook := test.NewNullLogger()
	f := NewFactory(WithFactoryLogger(logrus.NewEntry(logger)))

	l, err := f.Build(Descriptor{
		Name: "audit",
		Kind: KindLog,
		Options: map[string]any{
			"level":   "warn",
			"message": "module event",
			"fields":  []any{"path"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, l.HandleEvent(context.Background(), NewEvent("moduleInstalled", map[string]any{
		"path": "/m/a.zip",
		"size": 42,
	})))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "module event", entry.Message)
	assert.Equal(t, "audit", entry.Data["listener"])
	assert.Equal(t, "moduleInstalled", entry.Data["event"])
	assert.Equal(t, "/m/a.zip", entry.Data["path"])
	assert.NotContains(t, entry.Data, "size")
}

func TestExecListener(t *testing.T) {
	out := filepath.Join(t.TempDir(), "event.txt")
	f := NewFactory()

	l, err := f.Build(Descriptor{
		Name: "notify",
		Kind: KindExec,
		Options: map[string]any{
			"command":      []any{"sh", "-c", `printf "%s/%s" "$EXTCORE_LISTENER" "$EXTCORE_EVENT" > "$0"; cat >> "$0"`, out},
			"pass_payload": true,
			"timeout_ms":   "5000",
		},
	})
	require.NoError(t, err)

	require.NoError(t, l.HandleEvent(context.Background(), NewEvent("moduleInstalled", map[string]any{"path": "/m/a.zip"})))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "notify/moduleInstalled")
	assert.Contains(t, string(data), `"path":"/m/a.zip"`)
}

func TestExecListenerRejectsUnsafeEventName(t *testing.T) {
	l, err := NewFactory().Build(Descriptor{
		Name:    "notify",
		Kind:    KindExec,
		Options: map[string]any{"command": []string{"true"}},
	})
	require.NoError(t, err)

	assert.Error(t, l.HandleEvent(context.Background(), &Event{Name: "x; rm -rf /"}))
}
