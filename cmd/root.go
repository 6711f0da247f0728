package cmd

import (
	"github.com/grovetools/extcore/cli"
	"github.com/grovetools/extcore/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the extcore command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"extcore",
		"Discover, install and hot-deploy extension modules",
	)
	root.SilenceUsage = true
	root.SilenceErrors = true
	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(
		NewScanCmd(),
		NewInstallCmd(),
		NewListenersCmd(),
		NewConfigCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("extcore"),
	)
	cli.ApplyStyledHelpRecursive(root)
	return root
}
