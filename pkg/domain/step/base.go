package step

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platefab/platefab/pkg/domain"
	"github.com/platefab/platefab/pkg/domain/batch"
	"github.com/platefab/platefab/pkg/domain/batch/store"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Defaults of the collect phase. Collect jobs fuse per-job outputs and
// are expected to be IO bound, so they get a fixed, modest request.
const (
	collectWalltime = 2 * time.Hour
	collectMemoryMB = 3800
	collectCores    = 1
)

// Base bundles the services every Planner builds on: the step's
// on-disk layout, batch persistence, job construction and log
// discovery. Planner implementations embed or wrap it.
type Base struct {
	ExperimentId int
	StepName     string

	// Verbosity is forwarded to the step command as repeated -v flags.
	Verbosity int

	WorkflowRoot string

	logger *log.Logger
}

func NewBase(experimentId int, stepName string, workflowRoot string, verbosity int, logger *log.Logger) *Base {
	if logger == nil {
		logger = log.Default()
	}
	return &Base{
		ExperimentId: experimentId,
		StepName:     stepName,
		Verbosity:    verbosity,
		WorkflowRoot: workflowRoot,
		logger:       logger,
	}
}

func (b *Base) Logger() *log.Logger {
	return b.logger
}

// StepLocation is the root of everything this step writes,
// <workflowRoot>/<stepName>. It is created on first use.
func (b *Base) StepLocation() (string, error) {
	loc := filepath.Join(b.WorkflowRoot, b.StepName)
	if err := os.MkdirAll(loc, 0o755); err != nil {
		return "", err
	}
	return loc, nil
}

// LogLocation is where the scheduler drops the step's stdout/stderr
// files.
func (b *Base) LogLocation() (string, error) {
	stepLoc, err := b.StepLocation()
	if err != nil {
		return "", err
	}
	loc := filepath.Join(stepLoc, "log")
	if err := os.MkdirAll(loc, 0o755); err != nil {
		return "", err
	}
	return loc, nil
}

// BatchesLocation is where the step's batch files live.
func (b *Base) BatchesLocation() (string, error) {
	return b.Store().BatchesLocation()
}

// Store gives the batch persistence of this step.
func (b *Base) Store() *store.Store {
	return store.New(b.WorkflowRoot, b.StepName)
}

// BuildRunCommand builds the command line executing one run batch.
func (b *Base) BuildRunCommand(jobId int) []string {
	cmd := b.commandPrefix()
	return append(cmd, "run", "--job", strconv.Itoa(jobId))
}

// BuildCollectCommand builds the command line executing the collect
// phase.
func (b *Base) BuildCollectCommand() []string {
	return append(b.commandPrefix(), "collect")
}

func (b *Base) commandPrefix() []string {
	cmd := make([]string, 0, b.Verbosity+4)
	cmd = append(cmd, b.StepName)
	for i := 0; i < b.Verbosity; i++ {
		cmd = append(cmd, "-v")
	}
	return append(cmd, strconv.Itoa(b.ExperimentId))
}

// CreateStep builds an empty WorkflowStep for this step in the given
// submission.
func (b *Base) CreateStep(submissionId int) *domain.WorkflowStep {
	return &domain.WorkflowStep{
		Name:         b.StepName,
		SubmissionId: submissionId,
		RunJobs:      domain.NewSingleRunJobCollection(b.StepName, submissionId),
	}
}

// CreateRunJobs builds one run job per job id, all sharing the given
// resource request. Zero-valued requests are left out of the jobs, so
// the scheduler falls back to its own defaults.
func (b *Base) CreateRunJobs(
	submissionId int, jobIds []int,
	walltime time.Duration, memoryMB int, cores int,
) (*domain.SingleRunJobCollection, error) {
	if cores < 0 {
		return nil, kerr.InvalidArgument{
			Name: "cores", Reason: fmt.Sprintf("%d is not a positive integer", cores),
		}
	}
	logLoc, err := b.LogLocation()
	if err != nil {
		return nil, err
	}

	coll := domain.NewSingleRunJobCollection(b.StepName, submissionId)
	for _, jobId := range jobIds {
		jobId := jobId
		job := domain.RunJob{Job: domain.Job{
			StepName:          b.StepName,
			SubmissionId:      submissionId,
			JobId:             &jobId,
			Arguments:         b.BuildRunCommand(jobId),
			OutputDir:         logLoc,
			RequestedWalltime: walltime,
			RequestedMemoryMB: memoryMB,
			RequestedCores:    cores,
		}}
		if err := coll.Add(job); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// CreateCollectJob builds the single collect job of this step.
func (b *Base) CreateCollectJob(submissionId int) (*domain.CollectJob, error) {
	logLoc, err := b.LogLocation()
	if err != nil {
		return nil, err
	}
	return &domain.CollectJob{Job: domain.Job{
		StepName:          b.StepName,
		SubmissionId:      submissionId,
		Arguments:         b.BuildCollectCommand(),
		OutputDir:         logLoc,
		RequestedWalltime: collectWalltime,
		RequestedMemoryMB: collectMemoryMB,
		RequestedCores:    collectCores,
	}}, nil
}

// PrintJobDescriptions dumps the step's batches as YAML, for
// operators inspecting what a step is about to do.
func (b *Base) PrintJobDescriptions(w io.Writer, batches batch.Batches) error {
	doc := map[string]any{"run": batches.Run}
	if batches.Collect != nil {
		doc["collect"] = batches.Collect
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
