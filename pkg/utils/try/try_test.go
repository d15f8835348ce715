package try_test

import (
	"errors"
	"testing"

	"github.com/platefab/platefab/pkg/utils/try"
)

type fakeFataler struct {
	called bool
}

func (f *fakeFataler) Fatal(...any) {
	f.called = true
}

func TestTo(t *testing.T) {
	t.Run("ok Either returns its value", func(t *testing.T) {
		testee := try.To(42, nil)

		got, err := testee.Get()
		if err != nil {
			t.Fatal(err)
		}
		if got != 42 {
			t.Errorf("unmatch: (actual, expected) = (%d, 42)", got)
		}
		if testee.OrDefault(0) != 42 {
			t.Error("OrDefault should return the value when ok")
		}
	})

	t.Run("no-good Either carries its error", func(t *testing.T) {
		expected := errors.New("expected error")
		testee := try.To(0, expected)

		if _, err := testee.Get(); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if testee.OrDefault(13) != 13 {
			t.Error("OrDefault should return the default when no good")
		}

		ftl := &fakeFataler{}
		testee.OrFatal(ftl)
		if !ftl.called {
			t.Error("OrFatal should call Fatal when no good")
		}
	})
}
