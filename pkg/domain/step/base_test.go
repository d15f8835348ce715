package step_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/domain/step"
	"github.com/platefab/platefab/pkg/utils/cmp"
)

func TestBase_commands(t *testing.T) {
	t.Run("run command carries step, verbosity, experiment and job id", func(t *testing.T) {
		base := step.NewBase(42, "align", t.TempDir(), 2, nil)

		actual := base.BuildRunCommand(7)
		expected := []string{"align", "-v", "-v", "42", "run", "--job", "7"}

		if !cmp.SliceEq(actual, expected) {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
		}
	})

	t.Run("collect command has no job id", func(t *testing.T) {
		base := step.NewBase(42, "align", t.TempDir(), 0, nil)

		actual := base.BuildCollectCommand()
		expected := []string{"align", "42", "collect"}

		if !cmp.SliceEq(actual, expected) {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
		}
	})
}

func TestBase_layout(t *testing.T) {
	t.Run("locations nest under the workflow root and exist afterwards", func(t *testing.T) {
		root := t.TempDir()
		base := step.NewBase(1, "align", root, 0, nil)

		stepLoc, err := base.StepLocation()
		if err != nil {
			t.Fatal(err)
		}
		if stepLoc != filepath.Join(root, "align") {
			t.Errorf("unexpected step location: %s", stepLoc)
		}

		logLoc, err := base.LogLocation()
		if err != nil {
			t.Fatal(err)
		}
		if logLoc != filepath.Join(stepLoc, "log") {
			t.Errorf("unexpected log location: %s", logLoc)
		}

		batchLoc, err := base.BatchesLocation()
		if err != nil {
			t.Fatal(err)
		}
		if batchLoc != filepath.Join(stepLoc, "batches") {
			t.Errorf("unexpected batches location: %s", batchLoc)
		}
	})
}

func TestBase_CreateRunJobs(t *testing.T) {
	t.Run("it builds one job per id, sharing the resource request", func(t *testing.T) {
		base := step.NewBase(3, "align", t.TempDir(), 1, nil)

		coll, err := base.CreateRunJobs(
			10, []int{1, 2, 3}, 30*time.Minute, 2000, 2,
		)
		if err != nil {
			t.Fatal(err)
		}

		jobs := coll.Jobs()
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}
		for nth, job := range jobs {
			if job.JobId == nil || *job.JobId != nth+1 {
				t.Errorf("job %d: unexpected id %v", nth, job.JobId)
			}
			if job.SubmissionId != 10 {
				t.Errorf("job %d: unexpected submission %d", nth, job.SubmissionId)
			}
			if job.RequestedWalltime != 30*time.Minute ||
				job.RequestedMemoryMB != 2000 || job.RequestedCores != 2 {
				t.Errorf("job %d: unexpected resources: %+v", nth, job.Job)
			}
			expected := []string{"align", "-v", "3", "run", "--job"}
			if !cmp.SliceEq(job.Arguments[:len(expected)], expected) {
				t.Errorf("job %d: unexpected arguments %v", nth, job.Arguments)
			}
		}
	})

	t.Run("it leaves every resource at the scheduler default when unset", func(t *testing.T) {
		base := step.NewBase(3, "align", t.TempDir(), 0, nil)

		coll, err := base.CreateRunJobs(10, []int{1}, 0, 0, 0)
		if err != nil {
			t.Fatal(err)
		}

		jobs := coll.Jobs()
		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
		job := jobs[0]
		if job.RequestedWalltime != 0 || job.RequestedMemoryMB != 0 || job.RequestedCores != 0 {
			t.Errorf("unexpected resources: %+v", job.Job)
		}
	})

	t.Run("it rejects a negative core count", func(t *testing.T) {
		base := step.NewBase(3, "align", t.TempDir(), 0, nil)

		_, err := base.CreateRunJobs(10, []int{1}, time.Hour, 1000, -1)
		if !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestBase_CreateCollectJob(t *testing.T) {
	t.Run("it applies the collect defaults", func(t *testing.T) {
		base := step.NewBase(3, "align", t.TempDir(), 0, nil)

		job, err := base.CreateCollectJob(10)
		if err != nil {
			t.Fatal(err)
		}

		if job.JobId != nil {
			t.Errorf("collect job should not carry a job id: %v", *job.JobId)
		}
		if job.RequestedWalltime != 2*time.Hour {
			t.Errorf("unexpected walltime: %v", job.RequestedWalltime)
		}
		if job.RequestedMemoryMB != 3800 {
			t.Errorf("unexpected memory: %d", job.RequestedMemoryMB)
		}
		if job.RequestedCores != 1 {
			t.Errorf("unexpected cores: %d", job.RequestedCores)
		}
		expected := []string{"align", "3", "collect"}
		if !cmp.SliceEq(job.Arguments, expected) {
			t.Errorf("unexpected arguments: %v", job.Arguments)
		}
	})
}
