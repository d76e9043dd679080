package xenonsched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon"
	"xenon/xenonerr"
	"xenon/xenonsched/local"
)

func TestSchedulerSubmitBatchAndWait(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	id, err := sched.SubmitBatch(xenon.JobDescription{Executable: "/bin/true", Tasks: 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	status, err := sched.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "DONE", status.State)
}

func TestSchedulerSingleHarvest(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	id, err := sched.SubmitBatch(xenon.JobDescription{Executable: "/bin/true", Tasks: 1})
	require.NoError(t, err)

	_, err = sched.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)

	status, err := sched.GetJobStatus(id)
	require.NoError(t, err)
	assert.True(t, status.Done)

	_, err = sched.GetJobStatus(id)
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.NoSuchJob))
}

func TestSchedulerNoSuchQueue(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	_, err = sched.SubmitBatch(xenon.JobDescription{Executable: "/bin/true", Tasks: 1, QueueName: "bogus"})
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.NoSuchQueue))
}

func TestSchedulerCancelRunningJob(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	id, err := sched.SubmitBatch(xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"5"}, Tasks: 1})
	require.NoError(t, err)

	_, err = sched.WaitUntilRunning(id, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, sched.CancelJob(id))

	status, err := sched.WaitUntilDone(id, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "KILLED", status.State)
}

func TestSchedulerSurfaceDefaults(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	assert.ElementsMatch(t, []string{"single", "multi", "unlimited"}, sched.GetQueueNames())
	assert.Equal(t, "single", sched.GetDefaultQueueName())
	assert.Equal(t, 0, sched.GetDefaultRuntime())
	assert.NotNil(t, sched.GetFileSystem())
	assert.True(t, sched.IsOpen())

	status, err := sched.GetQueueStatus("single")
	require.NoError(t, err)
	assert.Equal(t, "single", status.Name)

	_, err = sched.GetQueueStatus("bogus")
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.NoSuchQueue))

	require.NoError(t, sched.Close())
	assert.False(t, sched.IsOpen())
}

func TestSchedulerInteractiveRejectsNonDefaultStreams(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	_, _, err = sched.SubmitInteractive(xenon.JobDescription{Executable: "/bin/true", Tasks: 1, Stdin: "in.txt"})
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.InvalidJobDescription))

	_, _, err = sched.SubmitInteractive(xenon.JobDescription{Executable: "/bin/true", Tasks: 1, Stdout: "custom.txt"})
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.InvalidJobDescription))

	_, _, err = sched.SubmitInteractive(xenon.JobDescription{Executable: "/bin/true", Tasks: 1, Stderr: "custom.txt"})
	require.Error(t, err)
	assert.True(t, xenonerr.IsKind(err, xenonerr.InvalidJobDescription))
}

func TestSchedulerGetJobsAndQueueStatuses(t *testing.T) {
	sched, err := local.New("", nil)
	require.NoError(t, err)
	defer sched.Close()

	id, err := sched.SubmitBatch(xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"2"}, Tasks: 1})
	require.NoError(t, err)

	jobs := sched.GetJobs("single")
	assert.Contains(t, jobs, id)

	statuses, err := sched.GetQueueStatuses("single")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "single", statuses[0].Name)
	assert.GreaterOrEqual(t, statuses[0].PendingJobs, 1)

	require.NoError(t, sched.CancelJob(id))
	_, _ = sched.WaitUntilDone(id, 2*time.Second)
}
