package workflow

import (
	"time"

	"wsiconvert/internal/batch"
)

// Summary is the outcome of one run.
type Summary struct {
	RunID      string
	Jobs       []*batch.Job
	Counts     batch.Counts
	ReportPath string
	Duration   time.Duration
}

// ExitCode returns the number of failed jobs, capped at MaxExitCode.
func (s Summary) ExitCode() int {
	return min(s.Counts.Failed, MaxExitCode)
}

// Failures returns the failed jobs in sequence order.
func (s Summary) Failures() []*batch.Job {
	var out []*batch.Job
	for _, job := range s.Jobs {
		if job.Failed() {
			out = append(out, job)
		}
	}
	return out
}
