package postgres_test

import (
	"errors"
	"math"
	"testing"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
	postgres "github.com/platefab/platefab/pkg/domain/shard/db/postgres"
)

func TestRanges(t *testing.T) {
	t.Run("ranges partition the key space with no gap and no overlap", func(t *testing.T) {
		for _, n := range []int{1, 2, 3, 7, 16, 100} {
			ranges, err := postgres.Ranges(n)
			if err != nil {
				t.Fatal(err)
			}
			if len(ranges) != n {
				t.Fatalf("n = %d: expected %d ranges, got %d", n, n, len(ranges))
			}

			if ranges[0].Min != 1 {
				t.Errorf("n = %d: first range must start at 1, starts at %d", n, ranges[0].Min)
			}
			if ranges[n-1].Max != math.MaxInt64 {
				t.Errorf(
					"n = %d: last range must end at 2^63-1, ends at %d",
					n, ranges[n-1].Max,
				)
			}
			for i := 0; i < n; i++ {
				if ranges[i].Max < ranges[i].Min {
					t.Errorf("n = %d: range %d is empty: %+v", n, i, ranges[i])
				}
				if i == 0 {
					continue
				}
				if ranges[i].Min != ranges[i-1].Max+1 {
					t.Errorf(
						"n = %d: gap or overlap between range %d (%+v) and %d (%+v)",
						n, i-1, ranges[i-1], i, ranges[i],
					)
				}
			}
		}
	})

	t.Run("the last range absorbs the division remainder", func(t *testing.T) {
		ranges, err := postgres.Ranges(7)
		if err != nil {
			t.Fatal(err)
		}
		width := int64(math.MaxInt64) / 7
		if ranges[6].Min != 6*width+1 {
			t.Errorf("unexpected last range start: %d", ranges[6].Min)
		}
		if ranges[6].Max != math.MaxInt64 {
			t.Errorf("unexpected last range end: %d", ranges[6].Max)
		}
	})

	t.Run("a shard count below one is rejected", func(t *testing.T) {
		if _, err := postgres.Ranges(0); !errors.Is(err, kerr.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
