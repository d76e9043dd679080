// Package xenonscript implements the SLURM-style scripting codec (spec
// §4.4): submit-script generation, interactive argument generation,
// tabular/keyed output parsing, exit-code parsing, and state
// classification. Field names (JobID, JobName, State/JobState, ExitCode,
// Reason, JOBID/NAME/STATE) are grounded on the retrieved
// jontk-slurm-client generated SLURM REST API structs, which name the
// real field set this dialect models.
package xenonscript

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"xenon"
	"xenon/internal/xvalidate"
	"xenon/xenonerr"
)

// DefaultName is the AdaptorName carried by the errors this package
// raises. Generated scripts and argument vectors do not contain it.
const DefaultName = "xenon"

// RUNNING_STATES, PENDING_STATES, FAILED_STATES, DONE_STATE as specified
// by spec §4.4. Classification matches by state.startsWith(member).
var (
	runningStates = []string{"CONFIGURING", "RUNNING", "COMPLETING"}
	pendingStates = []string{"PENDING", "STOPPED", "SUSPENDED", "SPECIAL_EXIT"}
	failedStates  = []string{"FAILED", "CANCELLED", "NODE_FAIL", "TIMEOUT", "PREEMPTED", "BOOT_FAIL"}
	doneState     = "COMPLETED"
)

// Classification is the result of matching a back-end state string
// against the spec §4.4 prefix sets.
type Classification int

const (
	Unclassified Classification = iota
	Running
	Pending
	Failed
	DoneClass
)

// ClassifyState matches state against the documented prefix sets, in
// running/pending/failed/done order (the sets are disjoint by
// construction, so order does not affect correctness, only which
// message is produced on a logically-impossible double match).
func ClassifyState(state string) Classification {
	for _, prefix := range runningStates {
		if strings.HasPrefix(state, prefix) {
			return Running
		}
	}
	for _, prefix := range pendingStates {
		if strings.HasPrefix(state, prefix) {
			return Pending
		}
	}
	for _, prefix := range failedStates {
		if strings.HasPrefix(state, prefix) {
			return Failed
		}
	}
	if strings.HasPrefix(state, doneState) {
		return DoneClass
	}
	return Unclassified
}

// ParseExitCode parses a scheduler exit-code field, which may be "N" or
// "N:S" where S is a signal number; only the prefix before ":" is
// significant.
func ParseExitCode(field string) (int, error) {
	prefix := field
	if idx := strings.IndexByte(field, ':'); idx >= 0 {
		prefix = field[:idx]
	}
	n, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil {
		return 0, errors.Wrapf(err, "parse exit code %q", field)
	}
	return n, nil
}

// DeriveException computes the job-level error implied by a terminal
// state and reason string, per spec §4.4 "Exception derivation":
//
//   - a non-failed state, or a FAILED state with a nonzero exit code
//     (the user's process legitimately failed), carries no exception.
//   - a state beginning with CANCELLED produces a JobCancelled error.
//   - any other reason != "None" produces a generic failure carrying
//     that reason.
//   - otherwise, a generic "failed for unknown reason" error.
func DeriveException(adaptorName, state string, exitCode int, reason string) error {
	class := ClassifyState(state)
	if class != Failed {
		return nil
	}
	if strings.HasPrefix(state, "FAILED") && exitCode != 0 {
		return nil
	}
	if strings.HasPrefix(state, "CANCELLED") {
		return xenonerr.New(adaptorName, xenonerr.JobCancelled, "job was cancelled")
	}
	if reason != "" && reason != "None" {
		return xenonerr.New(adaptorName, xenonerr.Unknown, reason)
	}
	return xenonerr.New(adaptorName, xenonerr.Unknown, "failed for unknown reason")
}

// quoteArg renders arg shell-safe using the round-trippable single-quote
// scheme spec §9 names: each embedded "'" becomes "'\''", and the whole
// argument is wrapped in single quotes whenever it contains a
// shell-meta-character or is empty.
func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"$`\\|&;()<>*?[]{}~!#") {
		return arg
	}
	escaped := strings.ReplaceAll(arg, "'", `'\''`)
	return "'" + escaped + "'"
}

// quoteArgs quotes each of args, joined with spaces.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}
	return strings.Join(quoted, " ")
}

// perTaskLauncher is the back-end's per-task launch command, prefixed
// onto the command line when JobDescription.StartPerTask is set.
const perTaskLauncher = "srun"

// GenerateSubmitScript renders desc as a #!/bin/sh + #SBATCH-directive
// batch submission script, per spec §4.4 and the worked example in spec
// §8 scenario 6.
func GenerateSubmitScript(desc xenon.JobDescription) (string, error) {
	if err := validateBatch(desc); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")

	writeDirective := func(format string, args ...interface{}) {
		b.WriteString("#SBATCH ")
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n")
	}

	if desc.Name != "" {
		writeDirective("--job-name='%s'", strings.ReplaceAll(desc.Name, "'", `'\''`))
	}
	if desc.WorkingDirectory != "" {
		writeDirective("--chdir=%s", desc.WorkingDirectory)
	}
	if desc.QueueName != "" && desc.QueueName != "single" {
		writeDirective("--partition=%s", desc.QueueName)
	}
	if desc.Tasks > 0 {
		writeDirective("--ntasks=%d", desc.Tasks)
	}
	if desc.CoresPerTask > 0 {
		writeDirective("--cpus-per-task=%d", desc.CoresPerTask)
	}
	if desc.TasksPerNode > 0 {
		writeDirective("--ntasks-per-node=%d", desc.TasksPerNode)
	}
	if desc.MaxRuntime > 0 {
		writeDirective("--time=%d", desc.MaxRuntime)
	}
	if desc.MaxMemory > 0 {
		writeDirective("--mem=%dM", desc.MaxMemory)
	}
	if desc.TempSpace > 0 {
		writeDirective("--tmp=%dM", desc.TempSpace)
	}
	if desc.Stdin != "" {
		writeDirective("--input=%s", desc.Stdin)
	}
	writeDirective("--output=%s", orDevNull(desc.Stdout))
	writeDirective("--error=%s", orDevNull(desc.Stderr))

	if len(desc.Environment) > 0 {
		for _, name := range sortedKeys(desc.Environment) {
			fmt.Fprintf(&b, "export %s=%q\n", name, desc.Environment[name])
		}
	}

	b.WriteString("\n")

	command := quoteArgs(append([]string{desc.Executable}, desc.Arguments...))
	if desc.StartPerTask {
		command = perTaskLauncher + " " + command
	}
	b.WriteString(command)
	b.WriteString("\n")

	return b.String(), nil
}

func orDevNull(path string) string {
	if path == "" {
		return "/dev/null"
	}
	return path
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GenerateInteractiveArgs renders desc as a flat argument vector for an
// interactive submission, per spec §4.4. The returned tag is the UUID
// embedded in --job-name, which the caller uses to re-locate the job in
// a subsequent queue listing.
func GenerateInteractiveArgs(desc xenon.JobDescription) (args []string, tag string, err error) {
	if err := validateInteractive(desc); err != nil {
		return nil, "", err
	}

	tag = uuid.New().String()

	args = append(args, "--quiet", "--job-name="+tag)
	if desc.WorkingDirectory != "" {
		args = append(args, "--chdir="+desc.WorkingDirectory)
	}
	if desc.QueueName != "" && desc.QueueName != "single" {
		args = append(args, "--partition="+desc.QueueName)
	}
	if desc.Tasks > 0 {
		args = append(args, fmt.Sprintf("--ntasks=%d", desc.Tasks))
	}
	if desc.TasksPerNode > 0 {
		args = append(args, fmt.Sprintf("--ntasks-per-node=%d", desc.TasksPerNode))
	}
	if desc.CoresPerTask > 0 {
		args = append(args, fmt.Sprintf("--cpus-per-task=%d", desc.CoresPerTask))
	}
	if desc.MaxMemory > 0 {
		args = append(args, fmt.Sprintf("--mem=%dM", desc.MaxMemory))
	}
	if desc.TempSpace > 0 {
		args = append(args, fmt.Sprintf("--tmp=%dM", desc.TempSpace))
	}
	if desc.MaxRuntime > 0 {
		args = append(args, fmt.Sprintf("--time=%d", desc.MaxRuntime))
	}
	args = append(args, desc.SchedulerArguments...)
	args = append(args, desc.Executable)
	args = append(args, desc.Arguments...)

	return args, tag, nil
}

func validateBatch(desc xenon.JobDescription) error {
	if desc.Executable == "" {
		return xenonerr.New(DefaultName, xenonerr.IncompleteJobDescription, "executable is required")
	}

	v := xvalidate.New()
	v.Assert(desc.Tasks >= 1, "tasks must be >= 1")
	v.Assert(desc.TasksPerNode >= 0, "tasksPerNode must be >= 0")
	v.Assert(desc.MaxRuntime >= -1, "maxRuntime must be >= -1")
	v.Assert(desc.MaxRuntime != 0, "maxRuntime == 0 is invalid for script back-ends")
	if v.Failed() {
		return xenonerr.New(DefaultName, xenonerr.InvalidJobDescription, xvalidate.Format(v.Message()))
	}
	return nil
}

func validateInteractive(desc xenon.JobDescription) error {
	if err := validateBatch(desc); err != nil {
		return err
	}

	v := xvalidate.New()
	v.Assert(desc.Stdin == "", "interactive jobs reject stdin redirection")
	v.Assert(desc.Stdout == "" || desc.Stdout == "stdout.txt", "interactive jobs only accept the default stdout path")
	v.Assert(desc.Stderr == "" || desc.Stderr == "stderr.txt", "interactive jobs only accept the default stderr path")
	v.Assert(len(desc.Environment) == 0, "interactive jobs do not support environment variables")
	if v.Failed() {
		return xenonerr.New(DefaultName, xenonerr.InvalidJobDescription, xvalidate.Format(v.Message()))
	}
	return nil
}
