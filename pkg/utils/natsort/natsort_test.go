package natsort_test

import (
	"testing"

	"github.com/platefab/platefab/pkg/utils/cmp"
	"github.com/platefab/platefab/pkg/utils/natsort"
)

func TestLess(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b     string
		expected bool
	}{
		"digit runs compare numerically":       {"job_2", "job_10", true},
		"numeric order beats lexical order":    {"step_9.out", "step_11.out", true},
		"equal strings are not less":           {"a_1", "a_1", false},
		"prefix sorts first":                   {"align", "align_1", true},
		"plain byte order outside digits":      {"aaa", "aab", true},
		"zero padding does not change a value": {"a_002_x", "a_2_y", true},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := natsort.Less(testcase.a, testcase.b); actual != testcase.expected {
				t.Errorf(
					"Less(%q, %q) = %v, expected %v",
					testcase.a, testcase.b, actual, testcase.expected,
				)
			}
		})
	}
}

func TestSorted(t *testing.T) {
	t.Run("it sorts timestamped log files so the most recent is last", func(t *testing.T) {
		actual := natsort.Sorted([]string{
			"align_run_000002_20240101T120000.out",
			"align_run_000002_20231231T235959.out",
			"align_run_000002_20240101T090000.out",
		})
		expected := []string{
			"align_run_000002_20231231T235959.out",
			"align_run_000002_20240101T090000.out",
			"align_run_000002_20240101T120000.out",
		}

		if !cmp.SliceEq(actual, expected) {
			t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
		}
	})
}
