// Package step holds the batch planner: the contract every workflow
// step implements, a registry of implementations, and the shared
// services they build on (batch IO, command construction, job
// factories, log discovery).
package step

import (
	"context"
	"fmt"

	"github.com/platefab/platefab/pkg/domain/batch"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Args is the declarative configuration of one step execution,
// as given by the workflow description.
type Args map[string]any

// Planner turns a workflow step's configuration into schedulable
// batches and executes them. One implementation exists per step kind.
type Planner interface {
	// CreateBatches derives the step's run and collect batches from
	// its configuration. It is a pure function of the configuration:
	// it must not touch the filesystem beyond resolving declared
	// input paths.
	CreateBatches(ctx context.Context, args Args) (batch.Batches, error)

	// RunJob executes one run batch.
	//
	// Jobs may be resubmitted after partial cluster failures, so the
	// implementation must be safely re-runnable with respect to its
	// own declared outputs.
	RunJob(ctx context.Context, b batch.RunBatch) error

	// CollectJobOutput runs exactly once per step, after all run jobs
	// succeeded, and fuses per-job outputs into the step's final
	// outputs. It may apply the batch's removals to delete
	// intermediate inputs.
	CollectJobOutput(ctx context.Context, b *batch.CollectBatch) error

	// DeletePreviousJobOutput wipes the step's previous outputs
	// before a re-run, so at most one generation per step is alive.
	DeletePreviousJobOutput(ctx context.Context) error
}

// Factory builds the Planner of one step kind on top of the shared
// planner services.
type Factory func(base *Base) (Planner, error)

// Registry maps step names to Planner factories.
//
// It is constructed explicitly and handed to whoever needs to resolve
// steps; there is no process-global registration.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds a step name to its factory.
// Registering the same name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return kerr.InvalidArgument{
			Name: "name", Reason: fmt.Sprintf("step %q is already registered", name),
		}
	}
	r.factories[name] = f
	return nil
}

// New builds the Planner registered under base.StepName.
func (r *Registry) New(base *Base) (Planner, error) {
	f, ok := r.factories[base.StepName]
	if !ok {
		return nil, kerr.NotFound{
			Path: base.StepName,
			Hint: "no planner is registered under this step name",
		}
	}
	return f(base)
}
