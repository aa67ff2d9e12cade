package proving

import "testing"

func TestDecodeHexStripsOptionalPrefix(t *testing.T) {
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	for _, in := range []string{"deadbeef", "0xdeadbeef", "0Xdeadbeef"} {
		got, err := decodeHex(in)
		if err != nil {
			t.Fatalf("decodeHex(%q): %v", in, err)
		}
		if len(got) != len(want) {
			t.Fatalf("decodeHex(%q) = %x, want %x", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("decodeHex(%q) = %x, want %x", in, got, want)
			}
		}
	}
}

func TestDecodeHexRejectsInvalidInput(t *testing.T) {
	if _, err := decodeHex("not-hex"); err == nil {
		t.Error("expected an error decoding non-hex input, got nil")
	}
}
