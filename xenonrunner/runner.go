// Package xenonrunner provides a one-shot "run a command, collect
// stdout/stderr/exit code" primitive built atop an InteractiveProcess.
// It is the default transport the slurm scheduler back-end
// (xenonsched/slurm) uses to run a scheduler's command-line tools on the
// scripts/arguments xenonscript generates.
//
// The concurrent stdout/stderr drain is required: if the runner read
// stdout to completion before touching stderr (or vice versa), a
// process that fills the unread pipe's OS buffer would deadlock writing
// to it while the runner blocks reading the other pipe. Grounded on the
// teacher's tjper-teleport/internal/jobworker/job.go pairing of a
// pipe-writer goroutine with a blocking Wait().
package xenonrunner

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"xenon/xenonproc"
)

// Result is the outcome of a one-shot command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports exitCode == 0 and empty stderr.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Stderr == ""
}

// SuccessIgnoreError reports exitCode == 0, regardless of stderr
// content. Both Success and SuccessIgnoreError are part of the
// contract: a command that writes warnings to stderr but exits 0 is
// "successful" under SuccessIgnoreError but not under Success.
func (r Result) SuccessIgnoreError() bool {
	return r.ExitCode == 0
}

// Runner submits one-shot commands via a ProcessFactory, always as an
// interactive process so its streams can be drained directly rather
// than redirected through a file.
type Runner struct {
	factory xenonproc.ProcessFactory
}

// New creates a Runner atop factory.
func New(factory xenonproc.ProcessFactory) *Runner {
	return &Runner{factory: factory}
}

// Run executes executable with args, writing stdin (if non-empty) and
// waiting for completion, draining stdout/stderr concurrently with the
// wait.
func (r *Runner) Run(ctx context.Context, executable string, args []string, stdin string) (Result, error) {
	proc, err := r.factory.StartInteractive(xenonproc.Description{
		Executable: executable,
		Arguments:  args,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "start command")
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, proc.Stdout(), &stdoutBuf)
	go drain(&wg, proc.Stderr(), &stderrBuf)

	if stdin != "" {
		if _, err := io.WriteString(proc.Stdin(), stdin); err != nil {
			_ = proc.Stdin().Close()
			_ = proc.Destroy()
			wg.Wait()
			return Result{}, errors.Wrap(err, "write stdin")
		}
	}
	_ = proc.Stdin().Close()

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	select {
	case <-ctx.Done():
		_ = proc.Destroy()
		<-done
		wg.Wait()
		return Result{}, errors.Wrap(ctx.Err(), "command cancelled")
	case waitErr := <-done:
		wg.Wait()
		if waitErr != nil {
			return Result{}, errors.Wrap(waitErr, "run command")
		}
	}

	return Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: proc.ExitCode(),
	}, nil
}

func drain(wg *sync.WaitGroup, r io.Reader, into *bytes.Buffer) {
	defer wg.Done()
	_, _ = io.Copy(into, r)
}
