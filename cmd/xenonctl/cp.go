package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"xenon"
	"xenon/xenoncopy"
	"xenon/xenonfs"
	"xenon/xenonfs/local"
	"xenon/xenonpath"
)

func newCopyCommand() *cobra.Command {
	var (
		recursive bool
		replace   bool
		ignore    bool
		poll      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cp <source> <destination>",
		Short: "copy a path on the local filesystem through the xenon copy engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := xenon.CopyCreate
			switch {
			case replace:
				mode = xenon.CopyReplace
			case ignore:
				mode = xenon.CopyIgnore
			}

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve current directory: %w", err)
			}
			fs, err := local.New(wd)
			if err != nil {
				return fmt.Errorf("open local filesystem: %w", err)
			}

			source := resolvePath(fs, args[0])
			dest := resolvePath(fs, args[1])

			engine := xenoncopy.New(xenoncopy.Config{AdaptorName: local.AdaptorName})

			id := engine.Copy(fs, source, fs, dest, mode, recursive)
			return watchCopy(engine, id, poll)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy a directory's contents")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing destination")
	cmd.Flags().BoolVar(&ignore, "ignore-existing", false, "skip entries whose destination already exists")
	cmd.Flags().DurationVar(&poll, "poll", 250*time.Millisecond, "how often to refresh the progress line")

	return cmd
}

func resolvePath(fs *xenonfs.Engine, raw string) xenonpath.Path {
	sep := fs.GetWorkingDirectory().Separator()
	return fs.ToAbsolutePath(xenonpath.New(sep, raw))
}

func watchCopy(engine *xenoncopy.Engine, id string, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for range ticker.C {
		status, err := engine.GetStatus(id)
		if err != nil {
			return fmt.Errorf("get copy status: %w", err)
		}

		fmt.Printf("\r%s %d/%d bytes   ", status.State, status.BytesCopied, status.BytesToCopy)

		if status.Done() {
			fmt.Println()
			return status.Exception
		}
	}
	return nil
}
