// Package local is the Scheduler back-end that runs jobs directly on
// the local host via os/exec, with no remote transport or scripting
// layer in between.
package local

import (
	"os"
	"path/filepath"

	"xenon"
	"xenon/config"
	"xenon/xenonerr"
	"xenon/xenonproc"
	"xenon/xenonsched"

	fslocal "xenon/xenonfs/local"
)

// AdaptorName identifies this back-end in generated errors.
const AdaptorName = "local"

// New creates a Scheduler whose jobs run as direct child processes of
// the current process. root, if non-empty, bounds every job's working
// directory: a relative WorkingDirectory is resolved against it, and an
// absolute one must fall under it.
func New(root string, properties *config.Properties) (*xenonsched.Scheduler, error) {
	fsRoot := root
	if fsRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, xenonerr.Wrap(AdaptorName, xenonerr.InvalidLocation, "resolve scheduler filesystem root", err)
		}
		fsRoot = wd
	}
	fs, err := fslocal.New(fsRoot)
	if err != nil {
		return nil, err
	}

	return xenonsched.New(xenonsched.Config{
		AdaptorName:             AdaptorName,
		Factory:                 xenonproc.NewLocalProcessFactory(),
		ResolveWorkingDirectory: resolver(root),
		BuildProcessDescription: buildProcessDescription,
		Properties:              properties,
		FileSystem:              fs,
	})
}

func resolver(root string) func(string) (string, error) {
	return func(dir string) (string, error) {
		if dir == "" {
			if root != "" {
				return root, nil
			}
			return os.Getwd()
		}
		if filepath.IsAbs(dir) {
			if root != "" && !withinRoot(root, dir) {
				return "", xenonerr.New(AdaptorName, xenonerr.InvalidPath, "working directory escapes scheduler root")
			}
			return dir, nil
		}
		if root == "" {
			return filepath.Abs(dir)
		}
		return filepath.Join(root, dir), nil
	}
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

func buildProcessDescription(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error) {
	out := xenonproc.Description{
		Executable:       desc.Executable,
		Arguments:        desc.Arguments,
		Environment:      desc.Environment,
		WorkingDirectory: resolvedDir,
		Limits: xenonproc.CgroupLimits{
			Cores:    float32(desc.CoresPerTask),
			MemoryMB: desc.MaxMemory,
		},
	}
	if !interactive {
		out.StdoutPath = desc.Stdout
		out.StderrPath = desc.Stderr
		out.StdinPath = desc.Stdin
	}
	return out, nil
}
