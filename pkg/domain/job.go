package domain

import (
	"fmt"
	"time"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Job is one schedulable unit handed to the external cluster scheduler.
//
// Resource fields are requests, not guarantees. Zero values mean
// "use the scheduler's default".
type Job struct {
	StepName     string
	SubmissionId int

	// JobId is present only for run jobs (one-based).
	JobId *int

	// Arguments is the command line the scheduler should execute,
	// token by token.
	Arguments []string

	// OutputDir is where the scheduler should place the job's
	// stdout/stderr files.
	OutputDir string

	RequestedWalltime time.Duration
	RequestedMemoryMB int
	RequestedCores    int
}

// RunJob is a Job of the parallel run phase.
// It corresponds 1:1 to the run batch with the same id.
type RunJob struct {
	Job
}

// CollectJob is the single post-barrier Job of a step's collect phase.
type CollectJob struct {
	Job
}

// FormatWalltime renders a duration in the HH:MM:SS form
// the scheduler expects.
func FormatWalltime(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ParseWalltime parses a HH:MM:SS duration.
func ParseWalltime(s string) (time.Duration, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, kerr.InvalidArgument{
			Name: "walltime", Reason: fmt.Sprintf("%q is not in HH:MM:SS form", s),
		}
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, kerr.InvalidArgument{
			Name: "walltime", Reason: fmt.Sprintf("%q is out of range", s),
		}
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// SingleRunJobCollection is the ordered set of run jobs of one step in
// one submission. Membership is keyed by job id, insertion order is
// preserved, duplicated job ids are rejected.
type SingleRunJobCollection struct {
	StepName     string
	SubmissionId int

	order []int
	jobs  map[int]RunJob
}

func NewSingleRunJobCollection(stepName string, submissionId int) *SingleRunJobCollection {
	return &SingleRunJobCollection{
		StepName:     stepName,
		SubmissionId: submissionId,
		jobs:         map[int]RunJob{},
	}
}

// Add appends a run job to the collection.
//
// The job must carry a job id and belong to the same step and
// submission as the collection.
func (c *SingleRunJobCollection) Add(job RunJob) error {
	if job.JobId == nil {
		return kerr.InvalidArgument{Name: "job", Reason: "run job without job id"}
	}
	if job.StepName != c.StepName || job.SubmissionId != c.SubmissionId {
		return kerr.InvalidArgument{
			Name: "job",
			Reason: fmt.Sprintf(
				"job of step %q (submission %d) does not belong to step %q (submission %d)",
				job.StepName, job.SubmissionId, c.StepName, c.SubmissionId,
			),
		}
	}
	id := *job.JobId
	if _, ok := c.jobs[id]; ok {
		return kerr.InvalidArgument{
			Name: "job", Reason: fmt.Sprintf("duplicated job id %d", id),
		}
	}
	c.order = append(c.order, id)
	c.jobs[id] = job
	return nil
}

// Jobs returns the run jobs in insertion order.
func (c *SingleRunJobCollection) Jobs() []RunJob {
	ret := make([]RunJob, len(c.order))
	for nth, id := range c.order {
		ret[nth] = c.jobs[id]
	}
	return ret
}

// Get returns the run job with the given id, if any.
func (c *SingleRunJobCollection) Get(jobId int) (RunJob, bool) {
	j, ok := c.jobs[jobId]
	return j, ok
}

func (c *SingleRunJobCollection) Len() int {
	return len(c.order)
}

// WorkflowStep identifies one execution of one named step within one
// submission. It owns zero-or-more run jobs and at most one collect job.
//
// Job state transitions are owned by the external scheduler; a
// WorkflowStep is a submission-time view, not a state machine.
type WorkflowStep struct {
	Name         string
	SubmissionId int

	RunJobs    *SingleRunJobCollection
	CollectJob *CollectJob
}
