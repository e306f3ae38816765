package batch

import (
	"fmt"

	"wsiconvert/internal/services"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending          Status = "pending"
	StatusStage1Done       Status = "stage1_done"
	StatusStage2Done       Status = "stage2_done"
	StatusMetadataStripped Status = "metadata_stripped"
	StatusFailed           Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:          0,
	StatusStage1Done:       1,
	StatusStage2Done:       2,
	StatusMetadataStripped: 3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Job is one source slide moving through the pipeline. Workers only touch
// their own Job, so no locking is needed between waves.
type Job struct {
	Seq             int
	SourcePath      string
	IntermediateDir string
	OutputPath      string
	Status          Status
	// FailedStage names the stage that recorded Err.
	FailedStage string
	Err         error
}

// Failed reports whether the job reached the terminal failed status.
func (j *Job) Failed() bool {
	return j.Status == StatusFailed
}

// Succeeded reports whether the job completed deidentification.
func (j *Job) Succeeded() bool {
	return j.Status == StatusMetadataStripped
}

// Advance moves the job forward to status. Skipping intermediate statuses is
// allowed; regressing, or leaving failed, is not.
func (j *Job) Advance(status Status) error {
	if j.Status == StatusFailed {
		return fmt.Errorf("job %d: cannot move from failed to %s", j.Seq, status)
	}
	if status == StatusFailed {
		return fmt.Errorf("job %d: use Fail to record failures", j.Seq)
	}
	to, ok := statusRank[status]
	if !ok {
		return fmt.Errorf("job %d: unknown status %q", j.Seq, status)
	}
	if to <= statusRank[j.Status] {
		return fmt.Errorf("job %d: cannot move from %s to %s", j.Seq, j.Status, status)
	}
	j.Status = status
	return nil
}

// Fail records err against stage and marks the job failed. The first failure
// wins; later calls are ignored.
func (j *Job) Fail(stage string, err error) {
	if j.Status == StatusFailed {
		return
	}
	if err == nil {
		err = services.Wrap(services.ErrExternalTool, stage, "", "unknown failure", nil)
	}
	j.Status = StatusFailed
	j.FailedStage = stage
	j.Err = err
}

// ErrorKind returns the reported failure kind, empty for non-failed jobs.
func (j *Job) ErrorKind() string {
	if j.Status != StatusFailed {
		return ""
	}
	return services.Kind(j.Err)
}

// ErrorMessage returns the failure text, empty for non-failed jobs.
func (j *Job) ErrorMessage() string {
	if j.Status != StatusFailed || j.Err == nil {
		return ""
	}
	return j.Err.Error()
}

// Chunk is a consecutive slice of jobs processed as one wave per stage.
type Chunk struct {
	// Index is 1-based.
	Index int
	Jobs  []*Job
}

// Active returns the jobs in the chunk that have not failed.
func (c Chunk) Active() []*Job {
	active := make([]*Job, 0, len(c.Jobs))
	for _, job := range c.Jobs {
		if !job.Failed() {
			active = append(active, job)
		}
	}
	return active
}

// Counts tallies job outcomes.
type Counts struct {
	Total     int
	Succeeded int
	Failed    int
}

// Tally counts terminal outcomes across jobs.
func Tally(jobs []*Job) Counts {
	counts := Counts{Total: len(jobs)}
	for _, job := range jobs {
		switch {
		case job.Failed():
			counts.Failed++
		case job.Succeeded():
			counts.Succeeded++
		}
	}
	return counts
}
