package proving

import "testing"

func encodeVerifyingID(id [8]uint32) []byte {
	out := make([]byte, 32)
	for i, word := range id {
		out[i*4] = byte(word >> 24)
		out[i*4+1] = byte(word >> 16)
		out[i*4+2] = byte(word >> 8)
		out[i*4+3] = byte(word)
	}
	return out
}

func TestVerifyReceiptAcceptsMatchingVerifyingID(t *testing.T) {
	id := [8]uint32{1, 2, 3, 4, 5, 6, 7, 8}
	receipt := append(encodeVerifyingID(id), []byte("rest-of-receipt")...)

	b := NewHTTPReductionBackend("http://unused")
	if err := b.VerifyReceipt(receipt, id); err != nil {
		t.Errorf("VerifyReceipt: %v", err)
	}
}

func TestVerifyReceiptRejectsMismatch(t *testing.T) {
	id := [8]uint32{1, 2, 3, 4, 5, 6, 7, 8}
	other := [8]uint32{9, 9, 9, 9, 9, 9, 9, 9}
	receipt := encodeVerifyingID(id)

	b := NewHTTPReductionBackend("http://unused")
	if err := b.VerifyReceipt(receipt, other); err == nil {
		t.Error("expected a mismatch error, got nil")
	}
}

func TestVerifyReceiptRejectsShortReceipt(t *testing.T) {
	b := NewHTTPReductionBackend("http://unused")
	if err := b.VerifyReceipt([]byte{1, 2, 3}, [8]uint32{}); err == nil {
		t.Error("expected an error for a too-short receipt, got nil")
	}
}
