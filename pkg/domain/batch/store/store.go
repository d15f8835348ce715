// Package store persists batch descriptions as relocatable JSON files
// in a step's batch directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/platefab/platefab/pkg/domain/batch"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Store reads and writes the batch files of one workflow step.
//
// On disk, every path under "inputs"/"outputs" is relative to the
// workflow root; Read* rehydrate them to absolute paths.
type Store struct {
	workflowRoot string
	stepName     string
}

func New(workflowRoot string, stepName string) *Store {
	return &Store{workflowRoot: workflowRoot, stepName: stepName}
}

// BatchesLocation is the step's batch directory, created on demand.
func (s *Store) BatchesLocation() (string, error) {
	dir := filepath.Join(s.workflowRoot, s.stepName, "batches")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// RunBatchFilename names the batch file of one run job.
//
// Job ids are zero-padded to 6 digits; a step holds at most 10^6 run jobs.
func (s *Store) RunBatchFilename(jobId int) (string, error) {
	dir, err := s.BatchesLocation()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_run_%06d.batch.json", s.stepName, jobId)), nil
}

// CollectBatchFilename names the single collect batch file of the step.
func (s *Store) CollectBatchFilename() (string, error) {
	dir, err := s.BatchesLocation()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_collect.batch.json", s.stepName)), nil
}

// Write validates batches and serializes them, one file per run batch
// plus one for the collect batch if present, with all paths relativized
// against the workflow root.
func (s *Store) Write(batches batch.Batches) error {
	if err := batches.Validate(); err != nil {
		return err
	}

	for _, run := range batches.Run {
		relative, err := run.Relativize(s.workflowRoot)
		if err != nil {
			return err
		}
		filename, err := s.RunBatchFilename(run.Id)
		if err != nil {
			return err
		}
		if err := writeJSON(filename, relative); err != nil {
			return err
		}
	}

	if batches.Collect != nil {
		relative, err := batches.Collect.Relativize(s.workflowRoot)
		if err != nil {
			return err
		}
		filename, err := s.CollectBatchFilename()
		if err != nil {
			return err
		}
		if err := writeJSON(filename, relative); err != nil {
			return err
		}
	}
	return nil
}

// ReadRunBatch reads the batch description of one run job,
// rehydrating paths to absolute.
func (s *Store) ReadRunBatch(jobId int) (batch.RunBatch, error) {
	filename, err := s.RunBatchFilename(jobId)
	if err != nil {
		return batch.RunBatch{}, err
	}

	var run batch.RunBatch
	if err := s.readJSON(filename, &run); err != nil {
		return batch.RunBatch{}, err
	}
	return run.Absolutize(s.workflowRoot)
}

// ReadCollectBatch reads the collect batch description,
// rehydrating paths to absolute.
func (s *Store) ReadCollectBatch() (*batch.CollectBatch, error) {
	filename, err := s.CollectBatchFilename()
	if err != nil {
		return nil, err
	}

	var collect batch.CollectBatch
	if err := s.readJSON(filename, &collect); err != nil {
		return nil, err
	}
	absolute, err := collect.Absolutize(s.workflowRoot)
	if err != nil {
		return nil, err
	}
	return &absolute, nil
}

// ReadAll globs every run batch file and the collect batch file (if
// present) of the step.
//
// When no run batch file exists the step was never initialized, which
// is fatal: a job-description error is returned.
func (s *Store) ReadAll() (batch.Batches, error) {
	dir, err := s.BatchesLocation()
	if err != nil {
		return batch.Batches{}, err
	}

	runFiles, err := filepath.Glob(filepath.Join(dir, s.stepName+"_run_*.batch.json"))
	if err != nil {
		return batch.Batches{}, err
	}
	if len(runFiles) == 0 {
		return batch.Batches{}, kerr.JobDescription{
			Reason: fmt.Sprintf("no batch files found in %s. initialize the step first", dir),
		}
	}
	sort.Strings(runFiles)

	batches := batch.Batches{Run: make([]batch.RunBatch, 0, len(runFiles))}
	for _, f := range runFiles {
		var run batch.RunBatch
		if err := s.readJSON(f, &run); err != nil {
			return batch.Batches{}, err
		}
		absolute, err := run.Absolutize(s.workflowRoot)
		if err != nil {
			return batch.Batches{}, err
		}
		batches.Run = append(batches.Run, absolute)
	}

	collectFile, err := s.CollectBatchFilename()
	if err != nil {
		return batch.Batches{}, err
	}
	if _, err := os.Stat(collectFile); err == nil {
		collect, err := s.ReadCollectBatch()
		if err != nil {
			return batch.Batches{}, err
		}
		batches.Collect = collect
	}

	return batches, nil
}

func (s *Store) readJSON(filename string, into any) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return kerr.NotFound{
				Path: filename,
				Hint: "initialize the step first",
			}
		}
		return err
	}
	if err := json.Unmarshal(content, into); err != nil {
		return err
	}
	return nil
}

func writeJSON(filename string, value any) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, content, 0o644)
}
