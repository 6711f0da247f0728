package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/extcore/cli"
	"github.com/grovetools/extcore/pkg/events"
	"github.com/spf13/cobra"
)

// NewListenersCmd creates the `listeners` command.
func NewListenersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listeners",
		Short: "Show the configured event listeners by category",
		Long: `Loads the listeners section of the configuration into a catalog and prints,
for each category, the listeners in the order they are invoked.`,
		Args: cobra.NoArgs,
		RunE: runListenersE,
	}
	cmd.Flags().BoolP("all", "a", false, "Include disabled listeners")
	return cmd
}

type listenerView struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind,omitempty"`
	Enabled    bool     `json:"enabled"`
	Priority   int      `json:"priority"`
	Events     []string `json:"events,omitempty"`
	RetryCount int      `json:"retry_count,omitempty"`
}

func runListenersE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := newEventService(cfg, cli.GetLogger(cmd, "events"))
	if err != nil {
		return err
	}
	catalog := svc.Catalog()
	all, _ := cmd.Flags().GetBool("all")

	views := make(map[string][]listenerView, len(events.Categories))
	for _, cat := range events.Categories {
		list := catalog.ActiveListeners(cat)
		if all {
			list = catalog.Listeners(cat)
		}
		vs := make([]listenerView, 0, len(list))
		for _, d := range list {
			vs = append(vs, listenerView{
				Name:       d.Name,
				Kind:       d.Kind,
				Enabled:    d.Enabled,
				Priority:   d.Priority,
				Events:     d.Events,
				RetryCount: d.RetryCount,
			})
		}
		views[cat.String()] = vs
	}

	out := cmd.OutOrStdout()
	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	for _, cat := range events.Categories {
		fmt.Fprintln(out, cli.AccentStyle.Render(cat.String()))
		vs := views[cat.String()]
		if len(vs) == 0 {
			fmt.Fprintln(out, "  "+cli.MutedStyle.Render("(none)"))
			continue
		}
		for _, v := range vs {
			accepts := "*"
			if len(v.Events) > 0 {
				accepts = strings.Join(v.Events, ",")
			}
			line := fmt.Sprintf("  %-20s %-6s priority=%d events=%s", v.Name, v.Kind, v.Priority, accepts)
			if !v.Enabled {
				line = cli.MutedStyle.Render(line + " (disabled)")
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
