package chain

import (
	"errors"
	"testing"
)

func TestWithRetriesReturnsFirstSuccess(t *testing.T) {
	attempts := 0
	v, err := WithRetries(5, func() (float64, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42.5, nil
	})
	if err != nil {
		t.Fatalf("WithRetries: %v", err)
	}
	if v != 42.5 {
		t.Errorf("expected 42.5, got %f", v)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetriesExhaustsAndReturnsLastError(t *testing.T) {
	_, err := WithRetries(3, func() (float64, error) {
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Error("expected an error after exhausting retries")
	}
}

func TestMustDecodeHexStripsPrefix(t *testing.T) {
	got := mustDecodeHex("0x0102ff")
	want := []byte{0x01, 0x02, 0xff}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: expected %x, got %x", i, want[i], got[i])
		}
	}
}
