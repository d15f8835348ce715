package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/platefab/platefab/pkg/errors"
)

type rootErr struct{}

func (rootErr) Error() string {
	return "root error for test"
}

func makeError(message string) error {
	return xe.New(message)
}

func TestNew(t *testing.T) {
	t.Run("it knows the location where it is created", func(t *testing.T) {
		testee := makeError("test error")
		message := testee.Error()

		_, thisFile, _, _ := runtime.Caller(0)

		if !strings.Contains(message, "makeError") {
			t.Errorf("it does not know the function name: %s", message)
		}
		if !strings.Contains(message, thisFile) {
			t.Errorf("it does not know the file (%s): %s", thisFile, message)
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("it supports the errors protocol", func(t *testing.T) {
		root := rootErr{}

		testee := xe.Wrap(fmt.Errorf("%w", fmt.Errorf("%w", root)))

		if !errors.Is(testee, root) {
			t.Error("it does not support unwrapping")
		}
	})

	t.Run("it keeps the note in its message", func(t *testing.T) {
		testee := xe.WrapWithNote("while testing", errors.New("inner"))

		message := testee.Error()
		if !strings.Contains(message, "while testing") {
			t.Errorf("note is lost: %s", message)
		}
		if !strings.Contains(message, "inner") {
			t.Errorf("wrapped message is lost: %s", message)
		}
	})
}
