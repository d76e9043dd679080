package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"xenon"
	"xenon/xenonsched"
	"xenon/xenonsched/local"
)

func newJobsCommand() *cobra.Command {
	var (
		dir      string
		pollTick time.Duration
	)

	cmd := &cobra.Command{
		Use:   "jobs <manifest.json>",
		Short: "submit a batch of jobs from a JSON manifest and watch them to completion",
		Long: "Reads a JSON array of job descriptions (the same fields as\n" +
			"xenon.JobDescription), submits each to the local scheduler, then\n" +
			"polls the queues and prints a live table until every job is done.\n" +
			"Ctrl+C cancels every job still running and exits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := readManifest(args[0])
			if err != nil {
				return err
			}

			sched, err := local.New(dir, nil)
			if err != nil {
				return fmt.Errorf("start local scheduler: %w", err)
			}
			defer sched.Close()

			var ids []string
			for i, desc := range descs {
				id, err := sched.SubmitBatch(desc)
				if err != nil {
					return fmt.Errorf("submit job %d (%s): %w", i, desc.Executable, err)
				}
				ids = append(ids, id)
			}

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)

			ticker := time.NewTicker(pollTick)
			defer ticker.Stop()

			// GetJobStatuses harvests a terminal job on the call that first
			// observes it (single-harvest semantics), so a finished job is
			// polled exactly once more and then served from this cache.
			final := make(map[string]xenon.JobStatus, len(ids))

			for {
				select {
				case <-interrupt:
					for _, id := range ids {
						sched.CancelJob(id)
					}
					fmt.Fprintln(os.Stderr, "interrupted, cancelled all jobs")
					return nil
				case <-ticker.C:
					statuses := pollStatuses(sched, ids, final)
					printStatusTable(statuses)
					if allDone(statuses) {
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "scheduler's filesystem root (defaults to the current directory)")
	cmd.Flags().DurationVar(&pollTick, "poll", time.Second, "how often to refresh the status table")

	return cmd
}

func readManifest(path string) ([]xenon.JobDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var descs []xenon.JobDescription
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return descs, nil
}

func pollStatuses(sched *xenonsched.Scheduler, ids []string, final map[string]xenon.JobStatus) []xenon.JobStatus {
	out := make([]xenon.JobStatus, 0, len(ids))
	var pending []string
	for _, id := range ids {
		if status, ok := final[id]; ok {
			out = append(out, status)
			continue
		}
		pending = append(pending, id)
	}
	for _, status := range sched.GetJobStatuses(pending) {
		if status.Done {
			final[status.JobIdentifier] = status
		}
		out = append(out, status)
	}
	return out
}

func allDone(statuses []xenon.JobStatus) bool {
	for _, s := range statuses {
		if !s.Done {
			return false
		}
	}
	return true
}

func printStatusTable(statuses []xenon.JobStatus) {
	sorted := append([]xenon.JobStatus(nil), statuses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].JobIdentifier < sorted[j].JobIdentifier })

	fmt.Printf("\n%-24s %-10s %-10s %s\n", "JOB", "STATE", "DONE", "DETAIL")
	for _, s := range sorted {
		detail := ""
		if s.Err != nil {
			detail = s.Err.Error()
		} else if s.ExitCode != nil {
			detail = fmt.Sprintf("exit %d", *s.ExitCode)
		}
		fmt.Printf("%-24s %-10s %-10t %s\n", s.JobIdentifier, s.State, s.Done, detail)
	}
}
