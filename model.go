// Package xenon defines the shared data model for xenon's two uniform
// surfaces: Scheduler (submit/monitor/cancel jobs) and FileSystem
// (traverse/read/write/copy files), plus the adaptor-facing interfaces
// concrete back-ends (local, SLURM-style scripting, SSH/SFTP/FTP) must
// satisfy. Sub-packages hold the engines (xenonexec, xenonsched,
// xenoncopy, xenonfs) and back-ends that realize this model.
package xenon

import "xenon/xenonpath"

// JobDescription is the caller-owned input to a job submission. A
// Scheduler defensively copies a JobDescription on submit (spec §3), so
// later caller mutation of a submitted value has no effect.
type JobDescription struct {
	// Executable is the program to run. Required.
	Executable string
	// Arguments are passed to Executable, in order.
	Arguments []string
	// Environment maps variable name to value. Names are unique; order
	// is not significant except where a back-end's output format
	// requires a deterministic iteration order (xenonscript sorts by
	// name for that reason).
	Environment map[string]string
	// WorkingDirectory is resolved against the back-end's filesystem
	// root before the job starts.
	WorkingDirectory string
	// QueueName selects single/multi/unlimited for the local scheduler,
	// or a back-end-specific partition/queue for scripting back-ends.
	// Defaults to "single" when empty.
	QueueName string
	// Stdin/Stdout/Stderr are path hints for batch jobs. Interactive
	// jobs reject Stdin entirely and only accept the literal defaults
	// for Stdout/Stderr (spec §4.1 step 1).
	Stdin, Stdout, Stderr string
	// Tasks is the task count; must equal 1 (spec §3, §4.1).
	Tasks int
	// TasksPerNode must be 0 or 1 for the local/scripting back-ends
	// implemented here.
	TasksPerNode int
	// CoresPerTask must be >= 1.
	CoresPerTask int
	// MaxMemory is a MiB quota; 0 means unset.
	MaxMemory int
	// TempSpace is a MiB quota; 0 means unset.
	TempSpace int
	// MaxRuntime is in minutes. -1 means "adaptor default". 0 is invalid
	// for script back-ends (spec §4.4).
	MaxRuntime int
	// SchedulerArguments are passed through to the back-end verbatim,
	// after xenon's own generated flags.
	SchedulerArguments []string
	// StartPerTask requests the back-end's per-task launcher (e.g.
	// "srun") to prefix the command line.
	StartPerTask bool
	// Name is a human-readable job name.
	Name string
}

// Copy returns a deep copy of desc, used by Scheduler implementations to
// satisfy the "defensive copy on submit" contract of spec §3.
func (desc JobDescription) Copy() JobDescription {
	out := desc
	if desc.Arguments != nil {
		out.Arguments = append([]string(nil), desc.Arguments...)
	}
	if desc.Environment != nil {
		out.Environment = make(map[string]string, len(desc.Environment))
		for k, v := range desc.Environment {
			out.Environment[k] = v
		}
	}
	if desc.SchedulerArguments != nil {
		out.SchedulerArguments = append([]string(nil), desc.SchedulerArguments...)
	}
	return out
}

// JobStatus is a point-in-time observation of a submitted job.
type JobStatus struct {
	JobIdentifier string
	Name          string
	State         string
	// ExitCode is nil until the process has exited with a code (as
	// opposed to being killed by a signal or never having run).
	ExitCode *int
	// Err is non-nil when the job's terminal state is ERROR, or it was
	// cancelled/timed out; spec §7 JobCancelled is surfaced here.
	Err error
	// Running is true iff State reflects an in-progress job.
	Running bool
	// Done is true iff the job has reached a terminal state.
	Done bool
	// SchedulerSpecificInformation carries back-end-reported fields not
	// otherwise modeled (e.g. a scripting back-end's raw "Reason").
	SchedulerSpecificInformation map[string]string
}

// PathAttributes describes one filesystem entry.
type PathAttributes struct {
	Path xenonpath.Path

	Directory    bool
	Regular      bool
	SymbolicLink bool
	Other        bool
	Hidden       bool

	// LastModified, Creation, LastAccess are ms since epoch; 0 when
	// unknown to the back-end.
	LastModified int64
	Creation     int64
	LastAccess   int64

	Size int64

	Permissions Permissions

	Owner, Group string

	Executable, Readable, Writable bool
}

// Permissions is a POSIX permission set, modeled as three
// owner/group/other rwx triples rather than a raw mode bitmask so
// back-ends that don't speak POSIX (FTP) can still populate a best
// effort value.
type Permissions struct {
	OwnerRead, OwnerWrite, OwnerExecute bool
	GroupRead, GroupWrite, GroupExecute bool
	OtherRead, OtherWrite, OtherExecute bool
}

// CopyMode is the policy applied when a destination entry already
// exists during a copy.
type CopyMode int

const (
	// CopyCreate fails if the destination exists.
	CopyCreate CopyMode = iota
	// CopyReplace overwrites an existing file, or merges into an
	// existing directory.
	CopyReplace
	// CopyIgnore skips an entry whose destination already exists.
	CopyIgnore
)

// String renders a CopyMode's name.
func (m CopyMode) String() string {
	switch m {
	case CopyCreate:
		return "CREATE"
	case CopyReplace:
		return "REPLACE"
	case CopyIgnore:
		return "IGNORE"
	default:
		return "UNKNOWN"
	}
}

// CopyState is the lifecycle state of an in-flight or completed copy.
type CopyState int

const (
	CopyPending CopyState = iota
	CopyRunning
	CopyDone
	CopyFailed
)

// String renders a CopyState's name.
func (s CopyState) String() string {
	switch s {
	case CopyPending:
		return "PENDING"
	case CopyRunning:
		return "RUNNING"
	case CopyDone:
		return "DONE"
	case CopyFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// CopyStatus is a point-in-time observation of a copy operation.
type CopyStatus struct {
	CopyIdentifier string
	State          CopyState
	BytesToCopy    int64
	BytesCopied    int64
	Exception      error
}

// Done reports whether the copy has reached a terminal state.
func (s CopyStatus) Done() bool {
	return s.State == CopyDone || s.State == CopyFailed
}
