package batch

import "testing"

func TestNewDefaultWrapperStartsUninitialized(t *testing.T) {
	w := NewDefaultWrapper()
	_, err := w.Wrap(WrapInput{})
	if err == nil {
		t.Error("expected Wrap to fail before Setup is called")
	}
}
