// Package slurm is the Scheduler back-end that talks to a SLURM-style
// batch system via its command-line tools (sbatch/squeue/scontrol/
// scancel/srun), using xenonscript to generate submissions and parse
// their output, and xenonrunner as the one-shot command transport.
//
// No real cluster is reachable from this exercise, so CommandRunner is
// pluggable and defaults to running those same command names as local
// processes -- the same "exercise the wiring entirely locally" approach
// the teacher's own reexec machinery used for its privilege-separated
// launch path.
package slurm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xenon/xenonerr"
	"xenon/xenonproc"
	"xenon/xenonrunner"
	"xenon/xenonscript"
)

// noExit mirrors xenonproc's "terminated by signal / never ran" exit
// code sentinel.
const noExit = -1

// CommandRunner executes a scheduler command-line tool and collects its
// stdout/stderr/exit code. *xenonrunner.Runner satisfies this directly.
type CommandRunner interface {
	Run(ctx context.Context, executable string, args []string, stdin string) (xenonrunner.Result, error)
}

// Factory is the xenonproc.ProcessFactory for the slurm back-end. It
// expects the Description it is given to already carry a generated
// artifact: for StartBatch, Executable is a rendered script's path on
// disk (Arguments empty); for StartInteractive, Executable is "srun"
// and Arguments is the generated interactive argument vector. See
// buildProcessDescription in adaptor.go, which produces exactly this
// shape from a xenon.JobDescription.
type Factory struct {
	runner      CommandRunner
	interactive xenonproc.ProcessFactory
	adaptorName string
	pollDelay   time.Duration
}

// NewFactory creates a Factory. runner executes sbatch/squeue/scontrol/
// scancel as one-shot commands; interactive launches srun as a live
// process exposing stdin/stdout/stderr pipes (commonly
// xenonproc.NewLocalProcessFactory, since srun itself is the thing
// doing the remote dispatch).
func NewFactory(adaptorName string, runner CommandRunner, interactive xenonproc.ProcessFactory, pollDelay time.Duration) *Factory {
	return &Factory{runner: runner, interactive: interactive, adaptorName: adaptorName, pollDelay: pollDelay}
}

var submittedJobRe = regexp.MustCompile(`(\d+)`)

// StartBatch submits desc.Executable (a rendered script path) via
// sbatch and returns a Process polling the resulting SLURM job.
func (f *Factory) StartBatch(desc xenonproc.Description) (xenonproc.Process, error) {
	result, err := f.runner.Run(context.Background(), "sbatch", []string{desc.Executable}, "")
	if err != nil {
		return nil, xenonerr.Wrap(f.adaptorName, xenonerr.InvalidJobDescription, "submit job", err)
	}
	if !result.SuccessIgnoreError() {
		return nil, xenonerr.New(f.adaptorName, xenonerr.InvalidJobDescription, "sbatch failed: "+result.Stderr)
	}
	match := submittedJobRe.FindString(result.Stdout)
	if match == "" {
		return nil, xenonerr.New(f.adaptorName, xenonerr.InvalidJobDescription, "could not parse job id from sbatch output: "+result.Stdout)
	}
	return &RemoteProcess{jobID: match, runner: f.runner, adaptorName: f.adaptorName, pollDelay: f.pollDelay}, nil
}

// StartInteractive launches desc.Executable ("srun") with desc.Arguments
// (the generated interactive argument vector) as a live local process.
func (f *Factory) StartInteractive(desc xenonproc.Description) (xenonproc.InteractiveProcess, error) {
	return f.interactive.StartInteractive(desc)
}

// Close releases the interactive process factory.
func (f *Factory) Close() error {
	return f.interactive.Close()
}

// RemoteProcess polls a SLURM job's state via squeue (while it's still
// queued/running) and scontrol (once it has left the queue), deriving
// a terminal exit code/error via xenonscript.
type RemoteProcess struct {
	jobID       string
	runner      CommandRunner
	adaptorName string
	pollDelay   time.Duration

	mu       sync.Mutex
	done     bool
	killed   bool
	exitCode int
}

func (p *RemoteProcess) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *RemoteProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Destroy issues scancel. The in-flight Wait loop observes the killed
// flag on its next iteration.
func (p *RemoteProcess) Destroy() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	_, err := p.runner.Run(context.Background(), "scancel", []string{p.jobID}, "")
	return err
}

// Wait polls until the job leaves the running/pending classification,
// or Destroy is called.
func (p *RemoteProcess) Wait() error {
	for {
		p.mu.Lock()
		if p.killed {
			p.exitCode = noExit
			p.done = true
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		parsed, err := p.query(context.Background())
		if err != nil {
			return err
		}
		if parsed == nil {
			time.Sleep(p.pollDelay)
			continue
		}

		switch xenonscript.ClassifyState(parsed.State) {
		case xenonscript.Running, xenonscript.Pending, xenonscript.Unclassified:
			time.Sleep(p.pollDelay)
			continue
		}

		exitCode := 0
		if parsed.ExitCode != nil {
			exitCode = *parsed.ExitCode
		}
		derived := xenonscript.DeriveException(p.adaptorName, parsed.State, exitCode, parsed.Reason)

		p.mu.Lock()
		p.exitCode = exitCode
		p.done = true
		p.mu.Unlock()
		return derived
	}
}

// query tries squeue first (the job is still known to the queue), and
// falls back to scontrol's fuller per-job dump once the job has left
// the queue (completed, failed, or been purged).
func (p *RemoteProcess) query(ctx context.Context) (*xenonscript.Parsed, error) {
	squeue, err := p.runner.Run(ctx, "squeue", []string{"-h", "-j", p.jobID, "-o", "%i %j %T"}, "")
	if err == nil && strings.TrimSpace(squeue.Stdout) != "" {
		listing := "JobId JobName State\n" + squeue.Stdout
		parsed, err := xenonscript.ParseTabularQueue(listing, p.jobID)
		if err != nil {
			return nil, err
		}
		if parsed != nil {
			return parsed, nil
		}
	}

	scontrol, err := p.runner.Run(ctx, "scontrol", []string{"show", "job", p.jobID}, "")
	if err != nil {
		return nil, xenonerr.Wrap(p.adaptorName, xenonerr.NoSuchJob, "query job "+p.jobID, err)
	}
	return xenonscript.ParseFullDump(scontrol.Stdout, p.jobID)
}

// scriptFileName mints a temp script name from a fresh random UUID,
// used by the owning Scheduler before a SLURM job id exists. Each call mints a fresh name so concurrent submissions
// (including jobs sharing a JobDescription.Name, or an empty one)
// never collide on disk.
func scriptFileName() string {
	return fmt.Sprintf("xenon-%s.sh", uuid.New().String())
}
