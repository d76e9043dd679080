package xenonexec_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon"
	"xenon/xenonexec"
	"xenon/xenonproc"
)

func newTestExecutor(desc xenon.JobDescription, interactive bool) *xenonexec.Executor {
	return xenonexec.New(xenonexec.Config{
		JobIdentifier: "test-1",
		Description:   desc,
		Interactive:   interactive,
		Factory:       xenonproc.NewLocalProcessFactory(),
		PollingDelay:  10 * time.Millisecond,
		AdaptorName:   "test",
		BuildProcessDescription: func(desc xenon.JobDescription, resolvedDir string, interactive bool) (xenonproc.Description, error) {
			out := xenonproc.Description{
				Executable:       desc.Executable,
				Arguments:        desc.Arguments,
				Environment:      desc.Environment,
				WorkingDirectory: resolvedDir,
			}
			if !interactive {
				out.StdoutPath = desc.Stdout
				out.StderrPath = desc.Stderr
				out.StdinPath = desc.Stdin
			}
			return out, nil
		},
	})
}

func TestExecutorRunsToDone(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/true", Tasks: 1}
	exec := newTestExecutor(desc, false)

	go exec.Run(context.Background())

	status, err := exec.WaitUntilDone(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "DONE", status.State)
	assert.True(t, status.Done)
	require.NotNil(t, status.ExitCode)
	assert.Equal(t, 0, *status.ExitCode)
	assert.NoError(t, status.Err)
}

func TestExecutorNonZeroExitIsStillDone(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/false", Tasks: 1}
	exec := newTestExecutor(desc, false)

	go exec.Run(context.Background())

	status, err := exec.WaitUntilDone(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "DONE", status.State)
	require.NotNil(t, status.ExitCode)
	assert.Equal(t, 1, *status.ExitCode)
}

func TestExecutorKillBeforeStart(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"5"}, Tasks: 1}
	exec := newTestExecutor(desc, false)

	exec.Kill()
	go exec.Run(context.Background())

	status, err := exec.WaitUntilDone(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "KILLED", status.State)
	assert.False(t, exec.HasRun())
}

func TestExecutorKillWhileRunning(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"5"}, Tasks: 1}
	exec := newTestExecutor(desc, false)

	go exec.Run(context.Background())

	_, err := exec.WaitUntilRunning(context.Background(), 2*time.Second)
	require.NoError(t, err)

	exec.Kill()

	status, err := exec.WaitUntilDone(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "KILLED", status.State)
}

func TestExecutorWaitUntilDoneTimeout(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"5"}, Tasks: 1}
	exec := newTestExecutor(desc, false)

	go exec.Run(context.Background())

	status, err := exec.WaitUntilDone(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, status.Done)

	exec.Kill()
	_, _ = exec.WaitUntilDone(context.Background(), 2*time.Second)
}

func TestExecutorInteractiveStreams(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/cat", Tasks: 1}
	exec := newTestExecutor(desc, true)

	go exec.Run(context.Background())

	_, err := exec.WaitUntilRunning(context.Background(), 2*time.Second)
	require.NoError(t, err)

	streams := exec.Streams()
	require.NotNil(t, streams)
	_, err = streams.Stdin.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	buf := make([]byte, 16)
	n, _ := streams.Stdout.Read(buf)
	assert.Equal(t, "hello\n", string(buf[:n]))

	_, err = exec.WaitUntilDone(context.Background(), 2*time.Second)
	require.NoError(t, err)
}
