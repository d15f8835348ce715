package batch

import (
	"fmt"
	"path/filepath"
)

// Relativize rewrites every path in the batch relative to root.
// Batch files on disk hold relative paths so a workflow can be moved.
func (b RunBatch) Relativize(root string) (RunBatch, error) {
	return b.rewrite(relativeTo(root))
}

// Absolutize rehydrates every relative path in the batch by prefixing root.
func (b RunBatch) Absolutize(root string) (RunBatch, error) {
	return b.rewrite(joinedWith(root))
}

func (b RunBatch) rewrite(f func(string) (string, error)) (RunBatch, error) {
	inputs, err := b.Inputs.Rewrite(f)
	if err != nil {
		return RunBatch{}, err
	}
	outputs, err := b.Outputs.Rewrite(f)
	if err != nil {
		return RunBatch{}, err
	}
	return RunBatch{
		Id:      b.Id,
		Inputs:  inputs.(PathMapping),
		Outputs: outputs.(PathMapping),
	}, nil
}

func (c CollectBatch) Relativize(root string) (CollectBatch, error) {
	return c.rewrite(relativeTo(root))
}

func (c CollectBatch) Absolutize(root string) (CollectBatch, error) {
	return c.rewrite(joinedWith(root))
}

func (c CollectBatch) rewrite(f func(string) (string, error)) (CollectBatch, error) {
	inputs, err := c.Inputs.Rewrite(f)
	if err != nil {
		return CollectBatch{}, err
	}
	outputs, err := c.Outputs.Rewrite(f)
	if err != nil {
		return CollectBatch{}, err
	}
	return CollectBatch{
		Inputs:   inputs.(PathMapping),
		Outputs:  outputs.(PathMapping),
		Removals: c.Removals,
	}, nil
}

func relativeTo(root string) func(string) (string, error) {
	return func(p string) (string, error) {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return "", fmt.Errorf("can not relativize %q against %q: %w", p, root, err)
		}
		return rel, nil
	}
}

func joinedWith(root string) func(string) (string, error) {
	return func(p string) (string, error) {
		if filepath.IsAbs(p) {
			return p, nil
		}
		return filepath.Join(root, p), nil
	}
}
