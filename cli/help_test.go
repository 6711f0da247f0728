package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("extcore", "Install modules")
	root.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "List modules",
		Long: `Walks the roots.

Examples:
  # Scan one root
  extcore scan ./plugins
`,
		Run: func(*cobra.Command, []string) {},
	})
	ApplyStyledHelpRecursive(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"scan", "--help"})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "EXTCORE SCAN")
	assert.Contains(t, out, "Walks the roots.")
	assert.Contains(t, out, "EXAMPLES")
	assert.Contains(t, out, "extcore scan ./plugins")
	assert.NotContains(t, out, "Examples:")

	buf.Reset()
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.Contains(buf.String(), "COMMANDS"))
	assert.Contains(t, buf.String(), "--verbose")
}

func TestSplitExamples(t *testing.T) {
	d, e := splitExamples("Does things.\n\nExamples:\n  run it\n")
	assert.Equal(t, "Does things.", d)
	assert.Equal(t, "run it", e)

	d, e = splitExamples("Only text")
	assert.Equal(t, "Only text", d)
	assert.Empty(t, e)
}
