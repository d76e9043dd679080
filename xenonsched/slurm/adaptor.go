package slurm

import (
	"os"
	"path/filepath"
	"time"

	"xenon"
	"xenon/config"
	"xenon/xenonerr"
	"xenon/xenonproc"
	"xenon/xenonrunner"
	"xenon/xenonsched"
	"xenon/xenonscript"

	fslocal "xenon/xenonfs/local"
)

// AdaptorName identifies this back-end in the errors and job ids it
// generates.
const AdaptorName = "slurm"

// New creates a Scheduler that submits jobs to a SLURM-style batch
// system. scriptDir is where rendered submit scripts are written before
// being handed to sbatch; it must be writable by whatever account the
// scheduler commands run as. runner is nil to default to running
// sbatch/squeue/scontrol/scancel as local commands (there being no real
// cluster reachable from this exercise).
func New(scriptDir string, runner CommandRunner, properties *config.Properties) (*xenonsched.Scheduler, error) {
	local := xenonproc.NewLocalProcessFactory()
	if runner == nil {
		runner = xenonrunner.New(local)
	}

	if scriptDir == "" {
		scriptDir = os.TempDir()
	}
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		return nil, xenonerr.Wrap(AdaptorName, xenonerr.BadParameter, "create script directory", err)
	}

	pollDelay, err := pollingDelay(properties)
	if err != nil {
		return nil, err
	}

	factory := NewFactory(AdaptorName, runner, local, time.Duration(pollDelay)*time.Millisecond)

	fs, err := fslocal.New(scriptDir)
	if err != nil {
		return nil, err
	}

	return xenonsched.New(xenonsched.Config{
		AdaptorName:             AdaptorName,
		Factory:                 factory,
		ResolveWorkingDirectory: identityResolver,
		BuildProcessDescription: buildProcessDescription(scriptDir),
		Properties:              properties,
		FileSystem:              fs,
	})
}

func pollingDelay(properties *config.Properties) (int, error) {
	if properties == nil {
		return 1000, nil
	}
	ms, err := properties.IntRange(config.PollingDelayMillis, 1000, 100, 60000)
	if err != nil {
		return 0, err
	}
	return ms, nil
}

func identityResolver(dir string) (string, error) {
	return dir, nil
}

// buildProcessDescription renders either a submit script (batch) or an
// interactive srun argument vector, writing the former to scriptDir,
// and packs the result into the plain xenonproc.Description that
// Factory's StartBatch/StartInteractive expect.
func buildProcessDescription(scriptDir string) func(xenon.JobDescription, string, bool) (xenonproc.Description, error) {
	return func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error) {
		if interactive {
			args, _, err := xenonscript.GenerateInteractiveArgs(desc)
			if err != nil {
				return xenonproc.Description{}, err
			}
			return xenonproc.Description{
				Executable:       "srun",
				Arguments:        args,
				WorkingDirectory: resolvedDir,
			}, nil
		}

		script, err := xenonscript.GenerateSubmitScript(desc)
		if err != nil {
			return xenonproc.Description{}, err
		}

		path := filepath.Join(scriptDir, scriptFileName())
		if writeErr := os.WriteFile(path, []byte(script), 0o700); writeErr != nil {
			return xenonproc.Description{}, xenonerr.Wrap(AdaptorName, xenonerr.BadParameter, "write submit script", writeErr)
		}

		return xenonproc.Description{
			Executable:       path,
			WorkingDirectory: resolvedDir,
		}, nil
	}
}
