package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"xenon"
	"xenon/xenonsched"
	"xenon/xenonsched/local"
)

func newRunCommand() *cobra.Command {
	var (
		dir         string
		queue       string
		cores       int
		memoryMB    int
		tempMB      int
		maxRuntime  int
		interactive bool
		timeout     time.Duration
		env         []string
		stdoutPath  string
		stderrPath  string
		stdinPath   string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "run <executable> [args...]",
		Short: "submit a job to the local scheduler and wait for it to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := local.New(dir, nil)
			if err != nil {
				return fmt.Errorf("start local scheduler: %w", err)
			}
			defer sched.Close()

			desc := xenon.JobDescription{
				Executable:   args[0],
				Arguments:    args[1:],
				Environment:  parseEnv(env),
				QueueName:    queue,
				CoresPerTask: cores,
				MaxMemory:    memoryMB,
				TempSpace:    tempMB,
				MaxRuntime:   maxRuntime,
				Name:         name,
				Stdout:       stdoutPath,
				Stderr:       stderrPath,
				Stdin:        stdinPath,
			}

			if interactive {
				return runInteractive(sched, desc, timeout)
			}
			return runBatch(sched, desc, timeout)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "scheduler's filesystem root (defaults to the current directory)")
	cmd.Flags().StringVar(&queue, "queue", "", "single/multi/unlimited (defaults to single)")
	cmd.Flags().IntVar(&cores, "cores", 0, "cores per task; 0 leaves the process unconstrained")
	cmd.Flags().IntVar(&memoryMB, "memory", 0, "memory limit in MiB; 0 leaves the process unconstrained")
	cmd.Flags().IntVar(&tempMB, "tmp", 0, "temp space hint in MiB; 0 means unset")
	cmd.Flags().IntVar(&maxRuntime, "max-runtime", -1, "wall-clock limit in minutes; -1 means adaptor default")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "submit as an interactive job and stream its pipes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the job if it hasn't finished after this long; 0 waits indefinitely")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "NAME=VALUE, may be repeated (batch jobs only)")
	cmd.Flags().StringVar(&stdoutPath, "stdout", "", "stdout path hint (batch jobs only)")
	cmd.Flags().StringVar(&stderrPath, "stderr", "", "stderr path hint (batch jobs only)")
	cmd.Flags().StringVar(&stdinPath, "stdin", "", "stdin path hint (batch jobs only)")
	cmd.Flags().StringVar(&name, "name", "", "human-readable job name")

	return cmd
}

func parseEnv(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, _ := splitPair(pair)
		out[name] = value
	}
	return out
}

func splitPair(pair string) (name, value string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return pair[:i], pair[i+1:], true
		}
	}
	return pair, "", false
}

func runBatch(sched *xenonsched.Scheduler, desc xenon.JobDescription, timeout time.Duration) error {
	id, err := sched.SubmitBatch(desc)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	status, err := waitWithTimeout(sched, id, timeout)
	if err != nil {
		return err
	}
	if status.Err != nil {
		return status.Err
	}
	if status.ExitCode != nil && *status.ExitCode != 0 {
		return exitCodeError(*status.ExitCode)
	}
	return nil
}

func runInteractive(sched *xenonsched.Scheduler, desc xenon.JobDescription, timeout time.Duration) error {
	id, streams, err := sched.SubmitInteractive(desc)
	if err != nil {
		return fmt.Errorf("submit interactive job: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(os.Stdout, streams.Stdout)
	}()
	go func() {
		defer wg.Done()
		io.Copy(os.Stderr, streams.Stderr)
	}()
	go func() {
		io.Copy(streams.Stdin, os.Stdin)
		streams.Stdin.Close()
	}()

	status, err := waitWithTimeout(sched, id, timeout)
	wg.Wait()
	if err != nil {
		return err
	}
	if status.Err != nil {
		return status.Err
	}
	if status.ExitCode != nil && *status.ExitCode != 0 {
		return exitCodeError(*status.ExitCode)
	}
	return nil
}

// exitCodeError carries a job's nonzero exit code through cobra's error
// return path so deferred cleanup (sched.Close) still runs before the
// process exits with that code.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("job exited with code %d", int(e)) }

func waitWithTimeout(sched *xenonsched.Scheduler, id string, timeout time.Duration) (xenon.JobStatus, error) {
	status, err := sched.WaitUntilDone(id, timeout)
	if err != nil {
		return xenon.JobStatus{}, fmt.Errorf("wait for job %s: %w", id, err)
	}
	if !status.Done {
		if cancelErr := sched.CancelJob(id); cancelErr != nil {
			return xenon.JobStatus{}, fmt.Errorf("job %s timed out, cancel also failed: %w", id, cancelErr)
		}
		status, err = sched.WaitUntilDone(id, 0)
		if err != nil {
			return xenon.JobStatus{}, fmt.Errorf("wait for cancelled job %s: %w", id, err)
		}
	}
	return sched.GetJobStatus(id)
}
