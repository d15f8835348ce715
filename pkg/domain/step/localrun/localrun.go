// Package localrun executes a step's batches in-process, without an
// external cluster scheduler. It drives the run phase through a
// bounded goroutine pool and runs the collect phase after the barrier.
package localrun

import (
	"context"
	"log"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/platefab/platefab/pkg/domain/batch"
	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/domain/step"
	xe "github.com/platefab/platefab/pkg/errors"
)

// Executor runs batches locally on a fixed-size worker pool.
type Executor struct {
	pool   *ants.Pool
	logger *log.Logger
}

// New builds an Executor with at most size concurrent run jobs.
func New(size int, logger *log.Logger) (*Executor, error) {
	if size < 1 {
		return nil, kerr.InvalidArgument{
			Name: "size", Reason: "the pool needs at least one worker",
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return &Executor{pool: pool, logger: logger}, nil
}

// Close tears the worker pool down. The Executor is unusable afterwards.
func (e *Executor) Close() {
	e.pool.Release()
}

// Execute runs all run batches through planner, then the collect batch
// if there is one.
//
// Run batches execute concurrently up to the pool size; the collect
// phase starts only after every run batch finished. On failure the
// remaining submissions are skipped, already-running batches finish,
// and the first error is returned.
func (e *Executor) Execute(ctx context.Context, planner step.Planner, batches batch.Batches) error {
	if err := e.runPhase(ctx, planner, batches.Run); err != nil {
		return err
	}
	if batches.Collect == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := planner.CollectJobOutput(ctx, batches.Collect); err != nil {
		return xe.WrapWithNote("collect phase failed", err)
	}
	return nil
}

func (e *Executor) runPhase(ctx context.Context, planner step.Planner, runs []batch.RunBatch) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		if failed() {
			break
		}

		run := run
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			e.logger.Printf("run batch %d: start", run.Id)
			if err := planner.RunJob(ctx, run); err != nil {
				e.logger.Printf("run batch %d: failed: %s", run.Id, err)
				fail(xe.WrapWithNote("run batch failed", err))
				return
			}
			e.logger.Printf("run batch %d: done", run.Id)
		}); err != nil {
			wg.Done()
			fail(xe.Wrap(err))
			break
		}
	}

	wg.Wait()
	return firstErr
}
