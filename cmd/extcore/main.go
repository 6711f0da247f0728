package main

import (
	"context"
	"os"

	"github.com/grovetools/extcore/cli"
	"github.com/grovetools/extcore/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
