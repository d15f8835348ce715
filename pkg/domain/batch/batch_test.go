package batch_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/platefab/platefab/pkg/domain/batch"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/utils/cmp"
)

func TestPathValueParsing(t *testing.T) {
	t.Run("it parses each container shape", func(t *testing.T) {
		var m batch.PathMapping
		err := json.Unmarshal([]byte(`{
			"image": "align/a.png",
			"sites": ["align/s1.png", "align/s2.png"],
			"stacks": [["align/z1.png"], ["align/z2.png", "align/z3.png"]],
			"channels": {"dapi": ["align/d.png"]}
		}`), &m)
		if err != nil {
			t.Fatal(err)
		}

		if p, ok := m["image"].(batch.Path); !ok || p != "align/a.png" {
			t.Errorf("image is not the expected Path: %#v", m["image"])
		}
		if l, ok := m["sites"].(batch.PathList); !ok || !cmp.SliceEq([]string(l), []string{"align/s1.png", "align/s2.png"}) {
			t.Errorf("sites is not the expected PathList: %#v", m["sites"])
		}
		if n, ok := m["stacks"].(batch.NestedPathList); !ok || len(n) != 2 {
			t.Errorf("stacks is not the expected NestedPathList: %#v", m["stacks"])
		}
		inner, ok := m["channels"].(batch.PathMapping)
		if !ok {
			t.Fatalf("channels is not a PathMapping: %#v", m["channels"])
		}
		if l, ok := inner["dapi"].(batch.PathList); !ok || !cmp.SliceEq([]string(l), []string{"align/d.png"}) {
			t.Errorf("channels.dapi is not the expected PathList: %#v", inner["dapi"])
		}
	})

	t.Run("numbers under inputs/outputs are rejected", func(t *testing.T) {
		var m batch.PathMapping
		err := json.Unmarshal([]byte(`{"bad": 42}`), &m)
		if !errors.Is(err, kerr.ErrJobDescription) {
			t.Errorf("expected a job description error, got %v", err)
		}
	})

	t.Run("mixed-type lists are rejected", func(t *testing.T) {
		var m batch.PathMapping
		err := json.Unmarshal([]byte(`{"bad": ["a.png", 1]}`), &m)
		if !errors.Is(err, kerr.ErrJobDescription) {
			t.Errorf("expected a job description error, got %v", err)
		}
	})
}

func TestRewrite(t *testing.T) {
	t.Run("relativize then absolutize restores the original paths", func(t *testing.T) {
		root := "/data/workflows/exp1"
		original := batch.RunBatch{
			Id: 1,
			Inputs: batch.IOMap{
				"sites": batch.PathList{root + "/align/s1.png", root + "/align/s2.png"},
				"meta":  batch.PathMapping{"dapi": batch.PathList{root + "/meta/d.json"}},
			},
			Outputs: batch.IOMap{
				"aligned": batch.PathList{root + "/align/out/s1.png"},
			},
		}

		relative, err := original.Relativize(root)
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.SliceEq(relative.Inputs["sites"].Flatten(), []string{"align/s1.png", "align/s2.png"}) {
			t.Errorf("paths are not relative: %v", relative.Inputs["sites"].Flatten())
		}

		restored, err := relative.Absolutize(root)
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.SliceEq(restored.Inputs.Flatten(), original.Inputs.Flatten()) {
			t.Errorf(
				"round trip lost inputs: (actual, expected) = (%v, %v)",
				restored.Inputs.Flatten(), original.Inputs.Flatten(),
			)
		}
		if !cmp.SliceEq(restored.Outputs.Flatten(), original.Outputs.Flatten()) {
			t.Errorf(
				"round trip lost outputs: (actual, expected) = (%v, %v)",
				restored.Outputs.Flatten(), original.Outputs.Flatten(),
			)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() batch.Batches {
		return batch.Batches{
			Run: []batch.RunBatch{
				{
					Id:      1,
					Inputs:  batch.IOMap{"sites": batch.PathList{"a.png"}},
					Outputs: batch.IOMap{"aligned": batch.PathList{"out/a.png"}},
				},
				{
					Id:      2,
					Inputs:  batch.IOMap{"sites": batch.PathList{"b.png"}},
					Outputs: batch.IOMap{"aligned": batch.PathList{"out/b.png"}},
				},
			},
			Collect: &batch.CollectBatch{
				Inputs:  batch.IOMap{"aligned": batch.PathList{"out/a.png", "out/b.png"}},
				Outputs: batch.IOMap{"fused": batch.PathList{"out/fused.png"}},
			},
		}
	}

	t.Run("a well-formed description passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Error(err)
		}
	})

	t.Run("ids with gaps are rejected", func(t *testing.T) {
		b := valid()
		b.Run[1].Id = 3
		if err := b.Validate(); !errors.Is(err, kerr.ErrJobDescription) {
			t.Errorf("expected a job description error, got %v", err)
		}
	})

	t.Run("duplicated output paths within a batch are rejected", func(t *testing.T) {
		b := valid()
		b.Run[0].Outputs["aligned"] = batch.PathList{"out/a.png", "out/a.png"}
		if err := b.Validate(); !errors.Is(err, kerr.ErrJobDescription) {
			t.Errorf("expected a job description error, got %v", err)
		}
	})

	t.Run("a run batch without inputs is rejected", func(t *testing.T) {
		b := valid()
		b.Run[0].Inputs = nil
		if err := b.Validate(); !errors.Is(err, kerr.ErrJobDescription) {
			t.Errorf("expected a job description error, got %v", err)
		}
	})
}

func TestListFiles(t *testing.T) {
	t.Run("an empty run phase yields empty lists, not an error", func(t *testing.T) {
		b := batch.Batches{}
		if got := b.ListInputFiles(); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
		if got := b.ListOutputFiles(); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})

	t.Run("nested containers flatten into one list", func(t *testing.T) {
		b := batch.Batches{
			Run: []batch.RunBatch{
				{
					Id: 1,
					Inputs: batch.IOMap{
						"stacks": batch.NestedPathList{{"z1.png"}, {"z2.png", "z3.png"}},
					},
					Outputs: batch.IOMap{"out": batch.PathList{"o1.png"}},
				},
			},
			Collect: &batch.CollectBatch{
				Inputs:  batch.IOMap{"out": batch.PathList{"o1.png"}},
				Outputs: batch.IOMap{"fused": batch.PathList{"fused.png"}},
			},
		}

		if got := b.ListInputFiles(); !cmp.SliceEq(got, []string{"z1.png", "z2.png", "z3.png"}) {
			t.Errorf("unexpected inputs: %v", got)
		}
		if got := b.ListOutputFiles(); !cmp.SliceEq(got, []string{"o1.png", "fused.png"}) {
			t.Errorf("unexpected outputs: %v", got)
		}
	})
}

func TestGroupItems(t *testing.T) {
	t.Run("it groups items in order, the last group may be short", func(t *testing.T) {
		groups, err := batch.GroupItems([]string{"s1", "s2", "s3", "s4", "s5"}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(groups) != 3 {
			t.Fatalf("expected 3 groups, got %d", len(groups))
		}
		if !cmp.SliceEq(groups[0], []string{"s1", "s2"}) ||
			!cmp.SliceEq(groups[1], []string{"s3", "s4"}) ||
			!cmp.SliceEq(groups[2], []string{"s5"}) {
			t.Errorf("unexpected grouping: %v", groups)
		}
	})

	t.Run("no items means no run batches", func(t *testing.T) {
		groups, err := batch.GroupItems([]string{}, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(groups) != 0 {
			t.Errorf("expected no groups, got %v", groups)
		}
	})

	t.Run("it rejects a non-positive group size", func(t *testing.T) {
		_, err := batch.GroupItems([]string{"s1"}, 0)
		if !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
