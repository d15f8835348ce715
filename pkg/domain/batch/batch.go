// Package batch models the persisted description of a workflow step's
// work units: many run batches (one per parallel job) and at most one
// collect batch fusing their outputs.
//
// Paths inside a batch come in a closed set of container shapes.
// They are rewritten between absolute (in memory) and
// workflow-root-relative (on disk) forms by one recursive function,
// so batch files stay relocatable.
package batch

import (
	"encoding/json"
	"fmt"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/utils"
)

// PathValue is one value under "inputs" or "outputs".
//
// The closed set of implementations is Path, PathList, NestedPathList
// and PathMapping. Anything else found in a batch file fails parsing
// with a job-description error.
type PathValue interface {
	// Rewrite applies f to every path in the container, returning a
	// container of the same shape.
	Rewrite(f func(string) (string, error)) (PathValue, error)

	// Flatten lists every path in the container.
	Flatten() []string

	isPathValue()
}

// Path is a single file path.
type Path string

func (p Path) Rewrite(f func(string) (string, error)) (PathValue, error) {
	rewritten, err := f(string(p))
	if err != nil {
		return nil, err
	}
	return Path(rewritten), nil
}

func (p Path) Flatten() []string {
	return []string{string(p)}
}

func (p Path) isPathValue() {}

// PathList is a flat list of file paths.
type PathList []string

func (l PathList) Rewrite(f func(string) (string, error)) (PathValue, error) {
	rewritten := make(PathList, len(l))
	for nth, p := range l {
		r, err := f(p)
		if err != nil {
			return nil, err
		}
		rewritten[nth] = r
	}
	return rewritten, nil
}

func (l PathList) Flatten() []string {
	return append([]string{}, l...)
}

func (l PathList) isPathValue() {}

// NestedPathList is a list of lists of file paths.
type NestedPathList [][]string

func (n NestedPathList) Rewrite(f func(string) (string, error)) (PathValue, error) {
	rewritten := make(NestedPathList, len(n))
	for nth, sub := range n {
		rsub := make([]string, len(sub))
		for i, p := range sub {
			r, err := f(p)
			if err != nil {
				return nil, err
			}
			rsub[i] = r
		}
		rewritten[nth] = rsub
	}
	return rewritten, nil
}

func (n NestedPathList) Flatten() []string {
	ret := []string{}
	for _, sub := range n {
		ret = append(ret, sub...)
	}
	return ret
}

func (n NestedPathList) isPathValue() {}

// PathMapping is a mapping of names to paths or path lists.
type PathMapping map[string]PathValue

func (m PathMapping) Rewrite(f func(string) (string, error)) (PathValue, error) {
	rewritten := make(PathMapping, len(m))
	for k, v := range m {
		r, err := v.Rewrite(f)
		if err != nil {
			return nil, err
		}
		rewritten[k] = r
	}
	return rewritten, nil
}

func (m PathMapping) Flatten() []string {
	ret := []string{}
	for _, k := range utils.SortedKeysOf(m) {
		ret = append(ret, m[k].Flatten()...)
	}
	return ret
}

func (m PathMapping) isPathValue() {}

func (m PathMapping) MarshalJSON() ([]byte, error) {
	plain := make(map[string]PathValue, len(m))
	for k, v := range m {
		plain[k] = v
	}
	return json.Marshal(plain)
}

func (m *PathMapping) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := make(PathMapping, len(raw))
	for k, v := range raw {
		pv, err := parsePathValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		parsed[k] = pv
	}
	*m = parsed
	return nil
}

// IOMap is the top-level "inputs"/"outputs" mapping of a batch.
type IOMap = PathMapping

func parsePathValue(data json.RawMessage) (PathValue, error) {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return Path(asString), nil
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(data, &asList); err == nil {
		if len(asList) == 0 {
			return PathList{}, nil
		}
		var first string
		if err := json.Unmarshal(asList[0], &first); err == nil {
			flat := PathList{}
			if err := json.Unmarshal(data, &flat); err != nil {
				return nil, kerr.JobDescription{
					Reason: "lists under inputs/outputs must hold strings only",
				}
			}
			return flat, nil
		}
		nested := NestedPathList{}
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil, kerr.JobDescription{
				Reason: "nested lists under inputs/outputs must hold strings only",
			}
		}
		return nested, nil
	}

	var asMapping map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMapping); err == nil {
		mapping := make(PathMapping, len(asMapping))
		for k, v := range asMapping {
			pv, err := parsePathValue(v)
			if err != nil {
				return nil, err
			}
			mapping[k] = pv
		}
		return mapping, nil
	}

	return nil, kerr.JobDescription{
		Reason: "values under inputs/outputs must be strings, lists or mappings",
	}
}

// RunBatch describes one unit of the parallel run phase.
//
// Ids are one-based, dense and contiguous across the run phase of one
// step. A step is limited to 10^6 run batches.
type RunBatch struct {
	Id      int   `json:"id"`
	Inputs  IOMap `json:"inputs"`
	Outputs IOMap `json:"outputs"`
}

// MaxRunBatches caps run batch ids per step (batch filenames zero-pad
// the id to 6 digits).
const MaxRunBatches = 1_000_000

// CollectBatch describes the single collect-phase unit of a step.
type CollectBatch struct {
	Inputs  IOMap `json:"inputs"`
	Outputs IOMap `json:"outputs"`

	// Removals names which of the Inputs are deleted once
	// collection succeeds.
	Removals []string `json:"removals,omitempty"`
}

// Batches is the full description of one step: the run phase and the
// optional collect phase.
type Batches struct {
	Run     []RunBatch
	Collect *CollectBatch
}

// Validate checks the structural contract of the whole description:
// inputs/outputs are present, ids are dense starting at 1, and every
// output path is unique within its batch.
func (b Batches) Validate() error {
	for nth, run := range b.Run {
		if run.Id != nth+1 {
			return kerr.JobDescription{
				Reason: fmt.Sprintf(
					"run batch ids must be dense and one-based: found id %d at position %d",
					run.Id, nth+1,
				),
			}
		}
		if run.Id > MaxRunBatches {
			return kerr.JobDescription{
				Reason: fmt.Sprintf("run batch id %d exceeds the %d cap", run.Id, MaxRunBatches),
			}
		}
		if run.Inputs == nil {
			return kerr.JobDescription{
				Reason: fmt.Sprintf(`run batch %d has no "inputs" mapping`, run.Id),
			}
		}
		if run.Outputs == nil {
			return kerr.JobDescription{
				Reason: fmt.Sprintf(`run batch %d has no "outputs" mapping`, run.Id),
			}
		}
		if dup, found := firstDuplicate(run.Outputs.Flatten()); found {
			return kerr.JobDescription{
				Reason: fmt.Sprintf("run batch %d declares output %q twice", run.Id, dup),
			}
		}
	}
	if c := b.Collect; c != nil {
		if c.Inputs == nil {
			return kerr.JobDescription{Reason: `collect batch has no "inputs" mapping`}
		}
		if c.Outputs == nil {
			return kerr.JobDescription{Reason: `collect batch has no "outputs" mapping`}
		}
	}
	return nil
}

func firstDuplicate(paths []string) (string, bool) {
	seen := map[string]struct{}{}
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			return p, true
		}
		seen[p] = struct{}{}
	}
	return "", false
}

// ListInputFiles flattens the inputs of every run batch into one list,
// for dependency auditing. An empty run phase yields an empty list.
func (b Batches) ListInputFiles() []string {
	return utils.Concat(
		utils.Map(b.Run, func(run RunBatch) []string { return run.Inputs.Flatten() })...,
	)
}

// ListOutputFiles flattens the outputs of every run batch and of the
// collect batch (if any) into one list.
func (b Batches) ListOutputFiles() []string {
	files := utils.Concat(
		utils.Map(b.Run, func(run RunBatch) []string { return run.Outputs.Flatten() })...,
	)
	if b.Collect != nil {
		files = append(files, b.Collect.Outputs.Flatten()...)
	}
	return files
}

// GroupItems splits a step's work items into run-batch-sized groups,
// keeping input order. Planners call this to decide how many run
// batches a step gets; group N becomes run batch N+1.
func GroupItems[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, kerr.InvalidArgument{
			Name: "size", Reason: fmt.Sprintf("%d is not a positive integer", size),
		}
	}
	return utils.Chunks(items, size), nil
}
