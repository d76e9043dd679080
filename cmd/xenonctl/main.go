// Command xenonctl drives the local scheduler and local filesystem
// adaptors from the shell: submit and wait on a batch or interactive
// job, watch a batch of jobs to completion across the three queues, or
// copy a path within the local filesystem (source and destination are
// both resolved against the current directory).
//
// xenonctl is a demonstration harness, not a daemon: every subcommand
// owns its xenonsched.Scheduler/xenonfs.Engine for the lifetime of one
// process invocation, so job/copy identifiers never outlive the command
// that minted them.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}

	var code exitCodeError
	if errors.As(err, &code) {
		os.Exit(int(code))
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
