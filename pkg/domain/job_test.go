package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/platefab/platefab/pkg/domain"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/utils/pointer"
)

func TestWalltime(t *testing.T) {
	t.Run("it renders durations as HH:MM:SS", func(t *testing.T) {
		for expected, d := range map[string]time.Duration{
			"02:00:00": 2 * time.Hour,
			"00:30:05": 30*time.Minute + 5*time.Second,
			"26:00:00": 26 * time.Hour,
		} {
			if actual := domain.FormatWalltime(d); actual != expected {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", actual, expected)
			}
		}
	})

	t.Run("it parses what it renders", func(t *testing.T) {
		original := 3*time.Hour + 25*time.Minute + 13*time.Second
		parsed, err := domain.ParseWalltime(domain.FormatWalltime(original))
		if err != nil {
			t.Fatal(err)
		}
		if parsed != original {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", parsed, original)
		}
	})

	t.Run("garbage is an invalid argument", func(t *testing.T) {
		if _, err := domain.ParseWalltime("two hours"); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func runJob(step string, submission int, jobId int) domain.RunJob {
	return domain.RunJob{Job: domain.Job{
		StepName:     step,
		SubmissionId: submission,
		JobId:        pointer.Ref(jobId),
		Arguments:    []string{step, "7", "run", "--job", "1"},
	}}
}

func TestSingleRunJobCollection(t *testing.T) {
	t.Run("it preserves insertion order", func(t *testing.T) {
		testee := domain.NewSingleRunJobCollection("align", 12)

		for _, id := range []int{3, 1, 2} {
			if err := testee.Add(runJob("align", 12, id)); err != nil {
				t.Fatal(err)
			}
		}

		ids := []int{}
		for _, j := range testee.Jobs() {
			ids = append(ids, *j.JobId)
		}
		if len(ids) != 3 || ids[0] != 3 || ids[1] != 1 || ids[2] != 2 {
			t.Errorf("unexpected order: %v", ids)
		}
	})

	t.Run("duplicated job ids are rejected", func(t *testing.T) {
		testee := domain.NewSingleRunJobCollection("align", 12)

		if err := testee.Add(runJob("align", 12, 1)); err != nil {
			t.Fatal(err)
		}
		if err := testee.Add(runJob("align", 12, 1)); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
		if testee.Len() != 1 {
			t.Errorf("collection grew on rejected add: %d", testee.Len())
		}
	})

	t.Run("jobs of another step or submission are rejected", func(t *testing.T) {
		testee := domain.NewSingleRunJobCollection("align", 12)

		if err := testee.Add(runJob("segment", 12, 1)); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
		if err := testee.Add(runJob("align", 13, 1)); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("a job without id is rejected", func(t *testing.T) {
		testee := domain.NewSingleRunJobCollection("align", 12)

		job := runJob("align", 12, 1)
		job.JobId = nil
		if err := testee.Add(job); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestSchemaName(t *testing.T) {
	t.Run("schema names derive from the experiment id", func(t *testing.T) {
		if actual := domain.SchemaName(7); actual != "experiment_7" {
			t.Errorf("unmatch: (actual, expected) = (%s, experiment_7)", actual)
		}
	})
}
