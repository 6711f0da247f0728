package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/grovetools/extcore/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "config not found",
			err:  errors.ConfigNotFound("/tmp/extcore.yml"),
			want: []string{"Configuration not found"},
		},
		{
			name: "invalid listener",
			err:  errors.ListenerInvalid("audit", "unknown kind", nil),
			want: []string{"Listener 'audit'", "listeners section"},
		},
		{
			name: "install aggregate lists every cause",
			err: errors.NewCompound(errors.ErrCodeInstallAggregate, "2 module(s) failed to install", []error{
				errors.InstallFailed("/m/a.zip", fmt.Errorf("boom")),
				errors.InstallFailed("/m/b.zip", fmt.Errorf("bang")),
			}),
			want: []string{"2 module(s) failed", "/m/a.zip", "/m/b.zip"},
		},
		{
			name: "scan failure",
			err:  errors.ScanFailed("/srv/modules", fmt.Errorf("permission denied")),
			want: []string{"Could not scan /srv/modules"},
		},
		{
			name: "plain error",
			err:  fmt.Errorf("something odd"),
			want: []string{"Error: something odd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			assert.NotContains(t, buf.String(), "Error details")
		})
	}
}

func TestErrorHandlerVerbose(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &buf}
	h.Handle(errors.ConfigInvalid("modules.workers must be at least 1"))

	assert.Contains(t, buf.String(), "Error details")
	assert.Contains(t, buf.String(), `"code": "CONFIG_INVALID"`)
}

func TestErrorHandlerNil(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, (&ErrorHandler{Out: &buf}).Handle(nil))
	assert.Empty(t, buf.String())
}
