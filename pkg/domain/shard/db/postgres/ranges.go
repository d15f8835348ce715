// Package postgres manages the shard layout of distributed tables:
// hash-to-range conversion at schema creation time, per-shard id
// sequences, and shard-pinned id allocation over raw autocommit
// connections.
package postgres

import (
	"math"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
)

// Distribution keys are positive signed 64-bit integers.
const (
	minKeyValue int64 = 1
	maxKeyValue int64 = math.MaxInt64
)

// Range is the contiguous key sub-range [Min, Max] owned by one shard.
type Range struct {
	Min int64
	Max int64
}

// Ranges partitions [1, 2^63-1] into n contiguous equal-width ranges.
//
// Integer division leaves a remainder of less than n keys; the last
// range absorbs it, so the union of the ranges covers the key space
// exactly, without gap or overlap.
func Ranges(n int) ([]Range, error) {
	if n < 1 {
		return nil, kerr.InvalidArgument{
			Name: "n", Reason: "at least one shard is required",
		}
	}

	width := maxKeyValue / int64(n)
	ranges := make([]Range, n)
	for i := range ranges {
		ranges[i] = Range{
			Min: int64(i)*width + minKeyValue,
			Max: int64(i+1) * width,
		}
	}
	ranges[n-1].Max = maxKeyValue
	return ranges, nil
}
