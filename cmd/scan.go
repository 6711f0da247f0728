package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/extcore/cli"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the `scan` command.
func NewScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root...]",
		Short: "List the modules found below the given roots",
		Long: `Walks every root in parallel and prints each deployable module that matches
the configured patterns. Nothing is installed.

Examples:
  # Scan the configured roots
  extcore scan

  # Scan two directories and print JSON lines
  extcore scan ./plugins ./vendor/modules --json
`,
		RunE: runScanE,
	}
}

func runScanE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	opts := cli.GetOptions(cmd)
	logger := cli.GetLogger(cmd, "scanner")

	roots, err := rootsFrom(args, cfg)
	if err != nil {
		return err
	}
	s, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	sc := s.Visit(cmd.Context(), roots...)
	defer sc.Close()

	for c := range sc.All() {
		if opts.JSONOutput {
			if err := enc.Encode(c); err != nil {
				return err
			}
			continue
		}
		kind := "file"
		if c.Dir {
			kind = "dir"
		}
		fmt.Fprintf(out, "%s  %s %s\n", c.Path, cli.MutedStyle.Render(kind), cli.AccentStyle.Render(c.Pattern))
	}
	return sc.Err()
}
