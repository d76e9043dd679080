package xenonscript

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"

	"xenon/xenonerr"
)

// Parsed is a normalized view of one job's back-end-reported fields,
// produced by any of the three parse surfaces below.
type Parsed struct {
	JobID    string
	JobName  string
	State    string
	ExitCode *int
	Reason   string
}

// ErrUnknownJob describes a requested id that is absent from a parse
// surface. The parse functions in this package do not return it: they
// report an absent id as a nil *Parsed with a nil error (spec §4.4:
// "returns null if absent").
var ErrUnknownJob = errors.New("job not present in parser output")

// ParseFullDump parses a "record-per-job" keyed dump -- blocks of
// "Key=Value" pairs separated by blank lines, one block per job, the
// fuller SLURM `scontrol show job` dialect -- and returns the record for
// jobID. It verifies the row's own JobId field matches jobID, defending
// against a back-end that returns an unrelated row on partial parse
// failure.
func ParseFullDump(dump string, jobID string) (*Parsed, error) {
	blocks := splitBlocks(dump)
	for _, block := range blocks {
		fields := parseKeyedFields(block)
		id, ok := firstNonEmpty(fields, "JobId", "JobID")
		if !ok {
			continue
		}
		if id != jobID {
			continue
		}
		return fieldsToParsed(fields, jobID)
	}
	return nil, nil
}

// ParseTabularQueue parses a whitespace-delimited "one row per job"
// listing whose header names the columns (e.g. "JobId JobName State
// ExitCode[ Reason]") and returns the row for jobID.
func ParseTabularQueue(listing string, jobID string) (*Parsed, error) {
	lines := strings.Split(strings.TrimRight(listing, "\n"), "\n")
	if len(lines) == 0 {
		return nil, nil
	}
	header := strings.Fields(lines[0])
	for _, line := range lines[1:] {
		row := strings.Fields(line)
		if len(row) == 0 {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			}
		}
		id, ok := firstNonEmpty(fields, "JobId", "JobID")
		if !ok {
			continue
		}
		if id != jobID {
			continue
		}
		return fieldsToParsed(fields, jobID)
	}
	return nil, nil
}

// ParseQueueStatus parses the minimal "JOBID NAME STATE" queue listing
// and returns the row for jobID.
func ParseQueueStatus(listing string, jobID string) (*Parsed, error) {
	lines := strings.Split(strings.TrimRight(listing, "\n"), "\n")
	if len(lines) == 0 {
		return nil, nil
	}
	for _, line := range lines[1:] {
		row := strings.Fields(line)
		if len(row) < 3 {
			continue
		}
		if row[0] != jobID {
			continue
		}
		return &Parsed{JobID: row[0], JobName: row[1], State: row[2]}, nil
	}
	return nil, nil
}

func splitBlocks(dump string) []string {
	var blocks []string
	var cur strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(dump))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if cur.Len() > 0 {
				blocks = append(blocks, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	if cur.Len() > 0 {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

func parseKeyedFields(block string) map[string]string {
	fields := make(map[string]string)
	for _, tok := range strings.Fields(block) {
		if idx := strings.IndexByte(tok, '='); idx > 0 {
			fields[tok[:idx]] = tok[idx+1:]
		}
	}
	return fields
}

func firstNonEmpty(fields map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// fieldsToParsed verifies required fields are present and the row's id
// matches jobID before extracting state/exit code.
func fieldsToParsed(fields map[string]string, jobID string) (*Parsed, error) {
	id, ok := firstNonEmpty(fields, "JobId", "JobID")
	if !ok {
		return nil, xenonerr.New(DefaultName, xenonerr.NoSuchJob, "parsed row missing job id field")
	}
	if id != jobID {
		return nil, xenonerr.New(DefaultName, xenonerr.NoSuchJob, "parsed row id does not match requested job")
	}
	state, ok := firstNonEmpty(fields, "State", "JobState")
	if !ok {
		return nil, xenonerr.New(DefaultName, xenonerr.NoSuchJob, "parsed row missing state field")
	}

	parsed := &Parsed{JobID: id, State: state}
	if name, ok := fields["JobName"]; ok {
		parsed.JobName = name
	}
	if reason, ok := fields["Reason"]; ok {
		parsed.Reason = reason
	}
	if raw, ok := fields["ExitCode"]; ok {
		code, err := ParseExitCode(raw)
		if err != nil {
			return nil, err
		}
		parsed.ExitCode = &code
	}
	return parsed, nil
}
