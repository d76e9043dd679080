// Package xenonsched implements the job-queue scheduler of spec §4.1/§6:
// three named queues (single/multi/unlimited) dispatching submitted jobs
// onto an xenonexec.Executor each, with submit/cancel/status/wait
// operations and single-harvest status semantics (a terminal status
// observed via GetJobStatus/GetJobStatuses removes the job; querying it
// again raises NoSuchJob).
//
// Grounded on tjper-teleport's per-Job lifecycle ownership (one
// goroutine drives one Job end to end) generalized into a worker-pool
// dispatch loop, in the same bounded-concurrency idiom as
// fcostin-tcplb/lib/limiter's reservation counting.
package xenonsched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"xenon"
	"xenon/config"
	"xenon/internal/xvalidate"
	"xenon/xenonerr"
	"xenon/xenonexec"
	"xenon/xenonfs"
	"xenon/xenonproc"
)

// Names of the three queues every Scheduler exposes.
const (
	Single    = "single"
	Multi     = "multi"
	Unlimited = "unlimited"
)

// Config bundles the back-end-specific pieces a Scheduler needs:
// how to launch a process, how to resolve a job's working directory
// against the back-end's root, and how to turn a resolved
// JobDescription into the xenonproc.Description the factory expects.
type Config struct {
	AdaptorName             string
	Factory                 xenonproc.ProcessFactory
	ResolveWorkingDirectory xenonexec.WorkingDirResolver
	BuildProcessDescription func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error)
	Properties              *config.Properties
	// FileSystem is the FileSystem facade rooted at the same location
	// the scheduler resolves working directories against (spec §4.2's
	// "scheduler's FS root"); exposed to callers via GetFileSystem.
	FileSystem *xenonfs.Engine
}

// New creates a Scheduler with its three queues running. Callers must
// invoke Close when done.
func New(cfg Config) (*Scheduler, error) {
	props := cfg.Properties
	if props == nil {
		props = config.New(cfg.AdaptorName, nil, config.MultiQueueWorkers, config.PollingDelayMillis, config.DefaultRuntimeMinutes)
	}

	multiWorkers, err := props.IntRange(config.MultiQueueWorkers, 4, 1, 10000)
	if err != nil {
		return nil, err
	}
	pollMs, err := props.IntRange(config.PollingDelayMillis, 1000, 100, 60000)
	if err != nil {
		return nil, err
	}
	defaultRuntime, err := props.IntRange(config.DefaultRuntimeMinutes, 0, 0, 1<<30)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		adaptorName:    cfg.AdaptorName,
		factory:        cfg.Factory,
		resolveDir:     cfg.ResolveWorkingDirectory,
		buildProc:      cfg.BuildProcessDescription,
		pollingDelay:   time.Duration(pollMs) * time.Millisecond,
		defaultRuntime: defaultRuntime,
		fs:             cfg.FileSystem,
		jobs:           make(map[string]*jobEntry),
		ctx:            ctx,
		cancel:         cancel,
	}
	s.queues = map[string]*workerQueue{
		Single:    newWorkerQueue(ctx, Single, 1),
		Multi:     newWorkerQueue(ctx, Multi, multiWorkers),
		Unlimited: newWorkerQueue(ctx, Unlimited, 0),
	}
	return s, nil
}

// jobEntry is a submitted job's bookkeeping record.
type jobEntry struct {
	executor  *xenonexec.Executor
	queueName string
}

// Scheduler dispatches JobDescriptions onto Executors via the three
// named queues.
type Scheduler struct {
	adaptorName    string
	factory        xenonproc.ProcessFactory
	resolveDir     xenonexec.WorkingDirResolver
	buildProc      func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error)
	pollingDelay   time.Duration
	defaultRuntime int
	fs             *xenonfs.Engine

	ctx    context.Context
	cancel context.CancelFunc

	queues map[string]*workerQueue

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	counter uint64
	closed  bool
}

func (s *Scheduler) nextID() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("%s-%d", s.adaptorName, n)
}

// validateDescription checks the constraints common to every submit
// (spec §4.1 step 1): executable required, tasks == 1, tasksPerNode <=
// 1, maxRuntime >= -1. An interactive submit additionally rejects stdin
// redirection and any stdout/stderr path other than the literal
// defaults "stdout.txt"/"stderr.txt", since the interactive transport
// has no file redirection to honor them with.
func validateDescription(adaptorName string, desc xenon.JobDescription, interactive bool) error {
	if desc.Executable == "" {
		return xenonerr.New(adaptorName, xenonerr.IncompleteJobDescription, "executable is required")
	}

	v := xvalidate.New()
	v.Assert(desc.Tasks == 1, "tasks must equal 1")
	v.Assert(desc.TasksPerNode <= 1, "tasksPerNode must be <= 1")
	v.Assert(desc.MaxRuntime >= -1, "maxRuntime must be >= -1")
	if interactive {
		v.Assert(desc.Stdin == "", "interactive jobs reject stdin redirection")
		v.Assert(desc.Stdout == "" || desc.Stdout == "stdout.txt", "interactive jobs only accept the default stdout path")
		v.Assert(desc.Stderr == "" || desc.Stderr == "stderr.txt", "interactive jobs only accept the default stderr path")
	}
	if v.Failed() {
		return xenonerr.New(adaptorName, xenonerr.InvalidJobDescription, xvalidate.Format(v.Message()))
	}
	return nil
}

// queueFor resolves desc.QueueName to a registered queue, defaulting to
// "single".
func (s *Scheduler) queueFor(name string) (string, *workerQueue, error) {
	if name == "" {
		name = Single
	}
	q, ok := s.queues[name]
	if !ok {
		return "", nil, xenonerr.New(s.adaptorName, xenonerr.NoSuchQueue, "no such queue: "+name)
	}
	return name, q, nil
}

// resolveRuntime substitutes the scheduler's configured default for
// maxRuntime == -1 ("adaptor default" per spec §3), leaving any other
// value untouched.
func (s *Scheduler) resolveRuntime(desc xenon.JobDescription) xenon.JobDescription {
	if desc.MaxRuntime == -1 {
		desc.MaxRuntime = s.defaultRuntime
	}
	return desc
}

func (s *Scheduler) newExecutor(id string, desc xenon.JobDescription, interactive bool) *xenonexec.Executor {
	desc = s.resolveRuntime(desc)
	return xenonexec.New(xenonexec.Config{
		JobIdentifier:           id,
		Description:             desc,
		Interactive:             interactive,
		Factory:                 s.factory,
		ResolveDir:              s.resolveDir,
		PollingDelay:            s.pollingDelay,
		AdaptorName:             s.adaptorName,
		BuildProcessDescription: s.buildProc,
	})
}

// SubmitBatch enqueues desc (defensively copied) and returns its job
// id immediately; the job runs asynchronously.
func (s *Scheduler) SubmitBatch(desc xenon.JobDescription) (string, error) {
	if err := validateDescription(s.adaptorName, desc, false); err != nil {
		return "", err
	}
	queueName, q, err := s.queueFor(desc.QueueName)
	if err != nil {
		return "", err
	}

	copied := desc.Copy()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", xenonerr.New(s.adaptorName, xenonerr.NotConnected, "scheduler is closed")
	}
	id := s.nextID()
	executor := s.newExecutor(id, copied, false)
	s.jobs[id] = &jobEntry{executor: executor, queueName: queueName}
	s.mu.Unlock()

	q.submit(s.ctx, executor)
	return id, nil
}

// SubmitInteractive enqueues desc and blocks until the job reaches
// RUNNING (returning its streams) or a terminal state before RUNNING
// was ever reached (returning the terminal error).
func (s *Scheduler) SubmitInteractive(desc xenon.JobDescription) (string, *xenonexec.Streams, error) {
	if err := validateDescription(s.adaptorName, desc, true); err != nil {
		return "", nil, err
	}
	queueName, q, err := s.queueFor(desc.QueueName)
	if err != nil {
		return "", nil, err
	}

	copied := desc.Copy()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, xenonerr.New(s.adaptorName, xenonerr.NotConnected, "scheduler is closed")
	}
	id := s.nextID()
	executor := s.newExecutor(id, copied, true)
	s.jobs[id] = &jobEntry{executor: executor, queueName: queueName}
	s.mu.Unlock()

	q.submit(s.ctx, executor)

	status, err := executor.WaitUntilRunning(s.ctx, 0)
	if err != nil {
		return id, nil, err
	}
	if status.State != "RUNNING" {
		return id, nil, status.Err
	}
	return id, executor.Streams(), nil
}

// CancelJob requests termination of id. Cancelling an already-terminal
// job is a no-op.
func (s *Scheduler) CancelJob(id string) error {
	entry, err := s.lookup(id)
	if err != nil {
		return err
	}
	entry.executor.Kill()
	return nil
}

func (s *Scheduler) lookup(id string) (*jobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[id]
	if !ok {
		return nil, xenonerr.New(s.adaptorName, xenonerr.NoSuchJob, "no such job: "+id)
	}
	return entry, nil
}

// harvestIfTerminal removes id from the job table if its status is
// terminal, implementing the single-harvest contract: once a terminal
// status has been observed through this method, a later lookup raises
// NoSuchJob.
func (s *Scheduler) harvestIfTerminal(id string, status xenon.JobStatus) {
	if !status.Done {
		return
	}
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// GetJobStatus returns id's current status. If the status is terminal,
// the job is removed from the scheduler; a subsequent call raises
// NoSuchJob.
func (s *Scheduler) GetJobStatus(id string) (xenon.JobStatus, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return xenon.JobStatus{}, err
	}
	status := entry.executor.Status()
	s.harvestIfTerminal(id, status)
	return status, nil
}

// GetJobStatuses is the bulk form of GetJobStatus. A missing id yields
// a JobStatus carrying a NoSuchJob error rather than aborting the whole
// batch, per spec §9's "tolerate partial failure in bulk queries"
// decision.
func (s *Scheduler) GetJobStatuses(ids []string) []xenon.JobStatus {
	out := make([]xenon.JobStatus, len(ids))
	for i, id := range ids {
		status, err := s.GetJobStatus(id)
		if err != nil {
			out[i] = xenon.JobStatus{JobIdentifier: id, Err: err}
			continue
		}
		out[i] = status
	}
	return out
}

// WaitUntilDone blocks until id reaches a terminal state or timeout
// elapses (0 means indefinitely). It does not harvest the job; a
// subsequent GetJobStatus call observes (and harvests) the same
// terminal status.
func (s *Scheduler) WaitUntilDone(id string, timeout time.Duration) (xenon.JobStatus, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return xenon.JobStatus{}, err
	}
	return entry.executor.WaitUntilDone(s.ctx, timeout)
}

// WaitUntilRunning blocks until id reaches RUNNING or a terminal state,
// or timeout elapses.
func (s *Scheduler) WaitUntilRunning(id string, timeout time.Duration) (xenon.JobStatus, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return xenon.JobStatus{}, err
	}
	return entry.executor.WaitUntilRunning(s.ctx, timeout)
}

// GetJobs returns the ids of every not-yet-harvested job, optionally
// restricted to the named queues.
func (s *Scheduler) GetJobs(queueNames ...string) []string {
	wanted := make(map[string]struct{}, len(queueNames))
	for _, n := range queueNames {
		wanted[n] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, entry := range s.jobs {
		if len(wanted) > 0 {
			if _, ok := wanted[entry.queueName]; !ok {
				continue
			}
		}
		ids = append(ids, id)
	}
	return ids
}

// QueueStatus summarizes one queue's current load.
type QueueStatus struct {
	Name        string
	PendingJobs int
}

// GetQueueStatuses reports job counts per queue, for the named queues
// (or all three if none given).
func (s *Scheduler) GetQueueStatuses(queueNames ...string) ([]QueueStatus, error) {
	names := queueNames
	if len(names) == 0 {
		names = []string{Single, Multi, Unlimited}
	}

	s.mu.Lock()
	counts := make(map[string]int, len(s.queues))
	for _, entry := range s.jobs {
		counts[entry.queueName]++
	}
	s.mu.Unlock()

	out := make([]QueueStatus, 0, len(names))
	for _, name := range names {
		if _, ok := s.queues[name]; !ok {
			return nil, xenonerr.New(s.adaptorName, xenonerr.NoSuchQueue, "no such queue: "+name)
		}
		out = append(out, QueueStatus{Name: name, PendingJobs: counts[name]})
	}
	return out, nil
}

// GetQueueNames returns the three fixed queue names every Scheduler
// exposes (spec §4.1).
func (s *Scheduler) GetQueueNames() []string {
	return []string{Single, Multi, Unlimited}
}

// GetDefaultQueueName returns the queue a submit with an unset
// QueueName resolves to (spec §4.1: "single").
func (s *Scheduler) GetDefaultQueueName() string {
	return Single
}

// GetDefaultRuntime returns the wall-clock limit, in minutes, a job
// submitted with maxRuntime == -1 actually runs under (spec §3's
// "adaptor default"); 0 means unlimited.
func (s *Scheduler) GetDefaultRuntime() int {
	return s.defaultRuntime
}

// GetQueueStatus is the singular form of GetQueueStatuses.
func (s *Scheduler) GetQueueStatus(name string) (QueueStatus, error) {
	statuses, err := s.GetQueueStatuses(name)
	if err != nil {
		return QueueStatus{}, err
	}
	return statuses[0], nil
}

// GetFileSystem returns the FileSystem facade rooted at the same
// location the scheduler resolves job working directories against, or
// nil if the back-end was constructed without one.
func (s *Scheduler) GetFileSystem() *xenonfs.Engine {
	return s.fs
}

// IsOpen reports whether the scheduler is still accepting submissions,
// i.e. Close has not been called.
func (s *Scheduler) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close shuts down every worker pool and the underlying process
// factory, and cancels the context jobs run under: each running job's
// executor destroys its process on its next poll and the job ends
// KILLED. Close does not block on their completion.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for _, q := range s.queues {
		q.close()
	}
	return s.factory.Close()
}
