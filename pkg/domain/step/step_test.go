package step_test

import (
	"context"
	"errors"
	"testing"

	"github.com/platefab/platefab/pkg/domain/batch"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/domain/step"
	"github.com/platefab/platefab/pkg/utils"
)

// sitePlanner plans one run batch per chunk of sites and a collect
// batch fusing them. It stands in for a real step implementation.
type sitePlanner struct {
	base *step.Base
}

var _ step.Planner = &sitePlanner{}

func (p *sitePlanner) CreateBatches(_ context.Context, args step.Args) (batch.Batches, error) {
	sites, ok := args["sites"].([]string)
	if !ok {
		return batch.Batches{}, kerr.InvalidArgument{Name: "sites", Reason: "missing"}
	}
	size, _ := args["batch_size"].(int)
	if size <= 0 {
		size = 1
	}
	groups, err := batch.GroupItems(sites, size)
	if err != nil {
		return batch.Batches{}, err
	}

	batches := batch.Batches{Run: []batch.RunBatch{}}
	fused := batch.PathList{}
	for nth, chunk := range groups {
		outputs := utils.Map(chunk, func(s string) string { return s + ".aligned" })
		fused = append(fused, outputs...)
		batches.Run = append(batches.Run, batch.RunBatch{
			Id:      nth + 1,
			Inputs:  batch.IOMap{"sites": batch.PathList(chunk)},
			Outputs: batch.IOMap{"aligned": batch.PathList(outputs)},
		})
	}
	batches.Collect = &batch.CollectBatch{
		Inputs:   batch.IOMap{"aligned": fused},
		Outputs:  batch.IOMap{"report": batch.Path("/data/report.csv")},
		Removals: []string{"aligned"},
	}
	return batches, nil
}

func (p *sitePlanner) RunJob(context.Context, batch.RunBatch) error { return nil }

func (p *sitePlanner) CollectJobOutput(context.Context, *batch.CollectBatch) error { return nil }

func (p *sitePlanner) DeletePreviousJobOutput(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	t.Run("it resolves a registered step by name", func(t *testing.T) {
		reg := step.NewRegistry()
		if err := reg.Register("align", func(base *step.Base) (step.Planner, error) {
			return &sitePlanner{base: base}, nil
		}); err != nil {
			t.Fatal(err)
		}

		base := step.NewBase(1, "align", t.TempDir(), 0, nil)
		planner, err := reg.New(base)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := planner.(*sitePlanner); !ok {
			t.Errorf("unexpected planner type: %T", planner)
		}
	})

	t.Run("it rejects double registration", func(t *testing.T) {
		reg := step.NewRegistry()
		factory := func(base *step.Base) (step.Planner, error) {
			return &sitePlanner{base: base}, nil
		}
		if err := reg.Register("align", factory); err != nil {
			t.Fatal(err)
		}
		if err := reg.Register("align", factory); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("an unregistered step name is not found", func(t *testing.T) {
		reg := step.NewRegistry()
		base := step.NewBase(1, "segment", t.TempDir(), 0, nil)

		if _, err := reg.New(base); !errors.Is(err, kerr.ErrMissing) {
			t.Errorf("expected ErrMissing, got %v", err)
		}
	})
}

func TestPlanAndPersist(t *testing.T) {
	t.Run("4 sites in pairs give 2 run batches and a collect batch, round-tripped through the store", func(t *testing.T) {
		base := step.NewBase(1, "align", t.TempDir(), 0, nil)
		planner := &sitePlanner{base: base}

		sites := []string{"/data/s1", "/data/s2", "/data/s3", "/data/s4"}
		batches, err := planner.CreateBatches(
			context.Background(), step.Args{"sites": sites, "batch_size": 2},
		)
		if err != nil {
			t.Fatal(err)
		}

		if len(batches.Run) != 2 {
			t.Fatalf("expected 2 run batches, got %d", len(batches.Run))
		}
		for nth, run := range batches.Run {
			if run.Id != nth+1 {
				t.Errorf("batch ids must be dense from 1, got %d at %d", run.Id, nth)
			}
		}
		if batches.Collect == nil {
			t.Fatal("expected a collect batch")
		}

		if err := base.Store().Write(batches); err != nil {
			t.Fatal(err)
		}
		reread, err := base.Store().ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(reread.Run) != 2 || reread.Collect == nil {
			t.Errorf("round trip lost batches: %+v", reread)
		}
	})
}
