// Package xenonexec implements the job executor state machine of spec
// §4.2: a single external process driven through
// PENDING -> RUNNING -> {DONE, ERROR, KILLED}, with cooperative
// cancellation, a deadline derived from JobDescription.MaxRuntime, and a
// suspension/signal protocol that lets observers request an eager
// re-poll instead of waiting out the full polling delay.
package xenonexec

import (
	"context"
	"io"
	"sync"
	"time"

	"xenon"
	"xenon/xenonerr"
	"xenon/xenonproc"
)

// State is one of the five executor states of spec §4.2.
type State int

const (
	Pending State = iota
	Running
	Done
	Error
	Killed
)

// String renders a State's name.
func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	case Error:
		return "ERROR"
	case Killed:
		return "KILLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of {DONE, ERROR, KILLED}.
func (s State) Terminal() bool {
	return s == Done || s == Error || s == Killed
}

// Streams is the (stdin-sink, stdout-source, stderr-source) triple
// exposed to a caller of an interactive submission, plus the owning
// job's identifier. Its lifetime is tied to the owning Executor: once
// the Executor is done, further writes/reads return an error from the
// underlying pipes.
type Streams struct {
	JobIdentifier string
	Stdin         io.WriteCloser
	Stdout        io.ReadCloser
	Stderr        io.ReadCloser
}

// WorkingDirResolver validates and resolves a job's requested working
// directory against the owning scheduler's filesystem root, per spec
// §4.2 step 2.
type WorkingDirResolver func(dir string) (string, error)

// Config bundles everything Executor needs beyond the JobDescription
// itself.
type Config struct {
	JobIdentifier string
	Description   xenon.JobDescription
	Interactive   bool
	Factory       xenonproc.ProcessFactory
	ResolveDir    WorkingDirResolver
	PollingDelay  time.Duration
	AdaptorName   string
	// BuildProcessDescription adapts a resolved JobDescription into the
	// xenonproc.Description the configured Factory expects -- this is
	// where a scripting back-end would substitute the generated script
	// path/args in place of the raw executable, for example.
	BuildProcessDescription func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error)
}

// New creates an Executor in state PENDING. The caller must invoke Run
// in its own goroutine to drive it.
func New(cfg Config) *Executor {
	e := &Executor{
		id:          cfg.JobIdentifier,
		desc:        cfg.Description,
		interactive: cfg.Interactive,
		factory:     cfg.Factory,
		resolveDir:  cfg.ResolveDir,
		pollDelay:   cfg.PollingDelay,
		adaptor:     cfg.AdaptorName,
		build:       cfg.BuildProcessDescription,
		state:       Pending,
		updateSig:   newUpdateSignal(),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Executor drives one process through the state machine of spec §4.2.
// All fields are guarded by mu; external callers must go through the
// exported methods.
type Executor struct {
	mu   sync.Mutex
	cond *sync.Cond

	id          string
	desc        xenon.JobDescription
	interactive bool
	factory     xenonproc.ProcessFactory
	resolveDir  WorkingDirResolver
	pollDelay   time.Duration
	adaptor     string
	build       func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error)

	state    State
	exitCode *int
	hasRun   bool
	killed   bool
	done     bool
	err      error

	updateSig *updateSignal
	streams   *Streams
	proc      xenonproc.Process
}

// JobIdentifier returns the executor's job id.
func (e *Executor) JobIdentifier() string { return e.id }

// Run is the driver loop of spec §4.2. It must be invoked exactly once,
// from the worker goroutine the owning scheduler dispatches it to.
func (e *Executor) Run(ctx context.Context) {
	e.mu.Lock()
	if e.killed {
		e.transitionLocked(Killed, nil, xenonerr.New(e.adaptor, xenonerr.JobCancelled, "cancelled"))
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	resolvedDir, err := e.resolveWorkingDirectory()
	if err != nil {
		e.mu.Lock()
		e.transitionLocked(Error, nil, err)
		e.mu.Unlock()
		return
	}

	procDesc, err := e.build(e.desc, resolvedDir, e.interactive)
	if err != nil {
		e.mu.Lock()
		e.transitionLocked(Error, nil, err)
		e.mu.Unlock()
		return
	}

	var proc xenonproc.Process
	var streams *Streams
	if e.interactive {
		ip, err := e.factory.StartInteractive(procDesc)
		if err != nil {
			e.mu.Lock()
			e.transitionLocked(Error, nil, xenonerr.Wrap(e.adaptor, xenonerr.BadParameter, "start interactive process", err))
			e.mu.Unlock()
			return
		}
		proc = ip
		streams = &Streams{JobIdentifier: e.id, Stdin: ip.Stdin(), Stdout: ip.Stdout(), Stderr: ip.Stderr()}
	} else {
		bp, err := e.factory.StartBatch(procDesc)
		if err != nil {
			e.mu.Lock()
			e.transitionLocked(Error, nil, xenonerr.Wrap(e.adaptor, xenonerr.BadParameter, "start batch process", err))
			e.mu.Unlock()
			return
		}
		proc = bp
	}

	e.mu.Lock()
	// A kill requested while the process was being created must still
	// be honored.
	if e.killed {
		e.mu.Unlock()
		_ = proc.Destroy()
		e.mu.Lock()
		e.transitionLocked(Killed, nil, xenonerr.New(e.adaptor, xenonerr.JobCancelled, "cancelled"))
		e.mu.Unlock()
		return
	}
	e.proc = proc
	e.streams = streams
	e.hasRun = true
	e.transitionLocked(Running, nil, nil)
	e.mu.Unlock()

	e.poll(ctx, proc)
}

// poll implements spec §4.2 step 5: repeatedly check process
// completion, the killed flag, and the deadline, sleeping between
// checks for up to the configured polling delay, woken early by an
// updateSignal trigger.
func (e *Executor) poll(ctx context.Context, proc xenonproc.Process) {
	var deadline time.Time
	if e.desc.MaxRuntime > 0 {
		deadline = time.Now().Add(time.Duration(e.desc.MaxRuntime) * time.Minute)
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- proc.Wait() }()

	for {
		select {
		case waitErr := <-waitDone:
			e.mu.Lock()
			code := proc.ExitCode()
			if waitErr != nil {
				e.transitionLocked(Error, nil, xenonerr.Wrap(e.adaptor, xenonerr.Unknown, "process wait failed", waitErr))
			} else {
				e.transitionLocked(Done, &code, nil)
			}
			e.mu.Unlock()
			return
		default:
		}

		e.mu.Lock()
		killedNow := e.killed
		e.mu.Unlock()
		if killedNow {
			_ = proc.Destroy()
			<-waitDone
			e.mu.Lock()
			e.transitionLocked(Killed, nil, xenonerr.New(e.adaptor, xenonerr.JobCancelled, "cancelled"))
			e.mu.Unlock()
			return
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			_ = proc.Destroy()
			<-waitDone
			e.mu.Lock()
			e.transitionLocked(Killed, nil, xenonerr.New(e.adaptor, xenonerr.JobCancelled, "timed out"))
			e.mu.Unlock()
			return
		}

		if ctx.Err() != nil {
			_ = proc.Destroy()
			<-waitDone
			e.mu.Lock()
			e.transitionLocked(Killed, nil, xenonerr.New(e.adaptor, xenonerr.JobCancelled, "scheduler shut down"))
			e.mu.Unlock()
			return
		}

		sig, cleanup := e.updateSig.register()
		select {
		case waitErr := <-waitDone:
			cleanup()
			e.mu.Lock()
			code := proc.ExitCode()
			if waitErr != nil {
				e.transitionLocked(Error, nil, xenonerr.Wrap(e.adaptor, xenonerr.Unknown, "process wait failed", waitErr))
			} else {
				e.transitionLocked(Done, &code, nil)
			}
			e.mu.Unlock()
			return
		case <-sig:
			cleanup()
		case <-time.After(e.pollDelay):
			cleanup()
		}
	}
}

// transitionLocked must be called with mu held. It enforces that
// transitions only ever move toward a terminal state and that a
// terminal state, once reached, is never left (spec §3 invariant).
func (e *Executor) transitionLocked(state State, exitCode *int, err error) {
	if e.done {
		panic("xenonexec: attempted transition out of terminal state")
	}
	e.state = state
	if exitCode != nil {
		e.exitCode = exitCode
	}
	if err != nil {
		e.err = err
	}
	if state.Terminal() {
		e.done = true
	}
	e.cond.Broadcast()
}

func (e *Executor) resolveWorkingDirectory() (string, error) {
	if e.resolveDir == nil {
		return e.desc.WorkingDirectory, nil
	}
	return e.resolveDir(e.desc.WorkingDirectory)
}

// TriggerStatusUpdate nudges the driver loop to re-poll immediately
// rather than waiting out its sleep.
func (e *Executor) TriggerStatusUpdate() {
	e.updateSig.trigger()
}

// Kill marks the executor killed. If it has not yet started, Run will
// synthesize a KILLED terminal status directly; if it is running, the
// poll loop observes the flag on its next iteration and destroys the
// process.
func (e *Executor) Kill() {
	e.mu.Lock()
	wasPending := e.state == Pending
	e.killed = true
	e.mu.Unlock()
	if wasPending {
		e.TriggerStatusUpdate()
	}
	e.TriggerStatusUpdate()
}

// Status returns a point-in-time JobStatus snapshot.
func (e *Executor) Status() xenon.JobStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Executor) statusLocked() xenon.JobStatus {
	return xenon.JobStatus{
		JobIdentifier: e.id,
		Name:          e.desc.Name,
		State:         e.state.String(),
		ExitCode:      e.exitCode,
		Err:           e.err,
		Running:       e.state == Running,
		Done:          e.done,
	}
}

// Streams returns the interactive stream triple, or nil if this
// executor is batch, or the process has not yet been created.
func (e *Executor) Streams() *Streams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streams
}

// HasRun reports whether the executor's process was ever created (i.e.
// it was not killed before starting).
func (e *Executor) HasRun() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasRun
}

// WaitUntilDone blocks until the executor reaches a terminal state, or
// timeout elapses. timeout == 0 means wait indefinitely; negative is
// invalid.
func (e *Executor) WaitUntilDone(ctx context.Context, timeout time.Duration) (xenon.JobStatus, error) {
	return e.waitUntil(ctx, timeout, func(s State) bool { return s.Terminal() })
}

// WaitUntilRunning blocks until the executor reaches RUNNING or a
// terminal state, or timeout elapses.
func (e *Executor) WaitUntilRunning(ctx context.Context, timeout time.Duration) (xenon.JobStatus, error) {
	return e.waitUntil(ctx, timeout, func(s State) bool { return s == Running || s.Terminal() })
}

func (e *Executor) waitUntil(ctx context.Context, timeout time.Duration, satisfied func(State) bool) (xenon.JobStatus, error) {
	if timeout < 0 {
		return xenon.JobStatus{}, xenonerr.New(e.adaptor, xenonerr.BadParameter, "timeout must be >= 0")
	}

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	done := make(chan struct{})
	stopWatch := make(chan struct{})
	go func() {
		defer close(done)
		e.mu.Lock()
		for !satisfied(e.state) {
			if hasDeadline {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					e.mu.Unlock()
					return
				}
				waitWithTimeout(e.cond, remaining)
			} else {
				e.cond.Wait()
			}
			select {
			case <-stopWatch:
				e.mu.Unlock()
				return
			default:
			}
		}
		e.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		close(stopWatch)
		e.cond.Broadcast()
		<-done
		return xenon.JobStatus{}, ctx.Err()
	case <-done:
	}

	e.mu.Lock()
	status := e.statusLocked()
	e.mu.Unlock()
	return status, nil
}

// waitWithTimeout waits on cond for at most d, re-acquiring cond.L
// before returning (matching sync.Cond.Wait's re-lock contract). It is
// a small helper since sync.Cond has no built-in timed wait.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	woke := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	go func() {
		cond.Wait()
		close(woke)
	}()
	<-woke
	timer.Stop()
}
