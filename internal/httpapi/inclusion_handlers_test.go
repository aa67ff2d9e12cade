package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleGetInclusionProofMethodNotAllowed(t *testing.T) {
	handlers := NewInclusionHandlers(nil, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/v1/proofs/aabb/inclusion", nil)
		rr := httptest.NewRecorder()

		handlers.HandleGetInclusionProof(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got status %d, want %d", method, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleGetInclusionProofRejectsBadPath(t *testing.T) {
	handlers := NewInclusionHandlers(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proofs/not-an-inclusion-path", nil)
	rr := httptest.NewRecorder()

	handlers.HandleGetInclusionProof(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleGetInclusionProofRejectsNonHexHash(t *testing.T) {
	handlers := NewInclusionHandlers(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proofs/not-hex/inclusion", nil)
	rr := httptest.NewRecorder()

	handlers.HandleGetInclusionProof(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleGetInclusionProofRejectsWrongLengthHash(t *testing.T) {
	handlers := NewInclusionHandlers(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proofs/aabb/inclusion", nil)
	rr := httptest.NewRecorder()

	handlers.HandleGetInclusionProof(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
