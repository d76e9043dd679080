package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "xenonctl",
		Short:         "drive xenon's local scheduler and filesystem adaptors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newJobsCommand())
	root.AddCommand(newCopyCommand())

	return root
}
