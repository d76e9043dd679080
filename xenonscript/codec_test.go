package xenonscript_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xenon"
	"xenon/xenonscript"
)

func TestGenerateSubmitScript(t *testing.T) {
	desc := xenon.JobDescription{
		Executable:   "/bin/echo",
		Arguments:    []string{"a b", "c"},
		Environment:  map[string]string{"A": "1", "B": "2"},
		QueueName:    "short",
		Tasks:        4,
		CoresPerTask: 2,
		MaxRuntime:   30,
		StartPerTask: true,
		Name:         "J",
	}

	script, err := xenonscript.GenerateSubmitScript(desc)
	require.NoError(t, err)

	want := strings.Join([]string{
		"#!/bin/sh",
		"#SBATCH --job-name='J'",
		"#SBATCH --partition=short",
		"#SBATCH --ntasks=4",
		"#SBATCH --cpus-per-task=2",
		"#SBATCH --time=30",
		"#SBATCH --output=/dev/null",
		"#SBATCH --error=/dev/null",
		`export A="1"`,
		`export B="2"`,
		"",
		"srun /bin/echo 'a b' c",
		"",
	}, "\n")

	assert.Equal(t, want, script)
}

func TestGenerateSubmitScriptRejectsZeroRuntime(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/true", Tasks: 1, MaxRuntime: 0}
	_, err := xenonscript.GenerateSubmitScript(desc)
	assert.Error(t, err)
}

func TestGenerateInteractiveArgsRejectsBadStreams(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/true", Tasks: 1, MaxRuntime: -1, Stdout: "custom.txt"}
	_, _, err := xenonscript.GenerateInteractiveArgs(desc)
	assert.Error(t, err)
}

func TestGenerateInteractiveArgsTag(t *testing.T) {
	desc := xenon.JobDescription{Executable: "/bin/sleep", Arguments: []string{"1"}, Tasks: 1, MaxRuntime: -1}
	args, tag, err := xenonscript.GenerateInteractiveArgs(desc)
	require.NoError(t, err)
	require.NotEmpty(t, tag)
	assert.Equal(t, "--quiet", args[0])
	assert.Equal(t, "--job-name="+tag, args[1])
	assert.Equal(t, "/bin/sleep", args[len(args)-2])
	assert.Equal(t, "1", args[len(args)-1])
}

func TestParseExitCode(t *testing.T) {
	tests := map[string]struct {
		field   string
		want    int
		wantErr bool
	}{
		"plain":         {field: "2", want: 2},
		"with signal":   {field: "2:15", want: 2},
		"non numeric":   {field: "abc", wantErr: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := xenonscript.ParseExitCode(test.field)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestClassifyState(t *testing.T) {
	tests := map[string]xenonscript.Classification{
		"CANCELLED+":  xenonscript.Failed,
		"FAILED":      xenonscript.Failed,
		"RUNNING+0":   xenonscript.Running,
		"PENDING":     xenonscript.Pending,
		"COMPLETED":   xenonscript.DoneClass,
		"COMPLETING":  xenonscript.Running,
	}
	for state, want := range tests {
		assert.Equal(t, want, xenonscript.ClassifyState(state), state)
	}
}

func TestParseTabularQueue(t *testing.T) {
	listing := "JobId JobName State ExitCode\n" +
		"100 myjob RUNNING 0:0\n" +
		"101 otherjob COMPLETED 0:0\n"

	parsed, err := xenonscript.ParseTabularQueue(listing, "101")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, "otherjob", parsed.JobName)
	assert.Equal(t, "COMPLETED", parsed.State)
	require.NotNil(t, parsed.ExitCode)
	assert.Equal(t, 0, *parsed.ExitCode)

	missing, err := xenonscript.ParseTabularQueue(listing, "999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestParseQueueStatus(t *testing.T) {
	listing := "JOBID NAME STATE\n102 myjob PENDING\n"
	parsed, err := xenonscript.ParseQueueStatus(listing, "102")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, "PENDING", parsed.State)
}

func TestDeriveException(t *testing.T) {
	assert.Nil(t, xenonscript.DeriveException("x", "COMPLETED", 0, "None"))
	assert.Nil(t, xenonscript.DeriveException("x", "FAILED", 7, "NonZeroExitCode"))

	err := xenonscript.DeriveException("x", "CANCELLED by user", 0, "None")
	require.Error(t, err)

	err = xenonscript.DeriveException("x", "FAILED", 0, "JobLaunchFailure")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobLaunchFailure")
}
