package events

import (
	"testing"

	"github.com/grovetools/extcore/config"
	"github.com/grovetools/extcore/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorFromConfig(t *testing.T) {
	disabled := false
	lc := config.ListenerConfig{
		Name:       "audit",
		Kind:       KindLog,
		Category:   "async",
		Enabled:    &disabled,
		Priority:   7,
		Events:     []string{EventModuleInstalled},
		RetryCount: 2,
		Options:    map[string]interface{}{"level": "info"},
	}

	d, err := DescriptorFromConfig(lc)
	require.NoError(t, err)
	assert.Equal(t, AsyncDeferred, d.Category)
	assert.False(t, d.Enabled)
	assert.Equal(t, 7, d.Priority)
	assert.Equal(t, 2, d.RetryCount)

	// The descriptor owns its slices and maps.
	d.Events[0] = "changed"
	d.Options["level"] = "debug"
	assert.Equal(t, EventModuleInstalled, lc.Events[0])
	assert.Equal(t, "info", lc.Options["level"])
}

func TestRegisterConfigured(t *testing.T) {
	c := newTestCatalog()
	err := RegisterConfigured(c, []config.ListenerConfig{
		{Name: "first", Kind: KindLog},
		{Name: "second", Kind: KindLog, Category: "sync"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, names(c.ActiveListeners(Immediate)))
	assert.Equal(t, []string{"second"}, names(c.ActiveListeners(SyncDeferred)))

	err = RegisterConfigured(c, []config.ListenerConfig{{Name: "third", Kind: "carrier-pigeon"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeListenerInvalid))
	assert.False(t, c.HasListener("third"))

	err = RegisterConfigured(c, []config.ListenerConfig{{Name: "fourth", Category: "later"}})
	assert.True(t, errors.Is(err, errors.ErrCodeListenerInvalid))
}
