// Package httpapi exposes the aggregator's tenant-facing query surface
// over plain net/http, in the same handler shape the teacher used for
// its proof artifact API (write a JSON envelope, log on encode failure,
// trim a fixed path prefix to recover a path parameter).
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/certen/proof-aggregator/internal/apperr"
	"github.com/certen/proof-aggregator/internal/inclusion"
)

const inclusionPathPrefix = "/api/v1/proofs/"

// InclusionHandlers serves Merkle inclusion proofs for verified tenant
// proofs (spec.md §4.8).
type InclusionHandlers struct {
	service *inclusion.Service
	logger  *log.Logger
}

func NewInclusionHandlers(service *inclusion.Service, logger *log.Logger) *InclusionHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[InclusionAPI] ", log.LstdFlags)
	}
	return &InclusionHandlers{service: service, logger: logger}
}

// HandleGetInclusionProof handles GET /api/v1/proofs/{proof_hash}/inclusion.
func (h *InclusionHandlers) HandleGetInclusionProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, apperr.New(apperr.CodeBadRequest, "only GET is allowed"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, inclusionPathPrefix)
	path = strings.TrimSuffix(path, "/")
	hashHex, ok := strings.CutSuffix(path, "/inclusion")
	if !ok || hashHex == "" {
		h.writeError(w, apperr.BadRequest("path must be /api/v1/proofs/{proof_hash}/inclusion"))
		return
	}

	proofHash, err := decodeProofHash(hashHex)
	if err != nil {
		h.writeError(w, apperr.BadRequest("proof_hash must be 32 bytes of hex"))
		return
	}

	proof, err := h.service.GetInclusionProof(r.Context(), proofHash)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, proof)
}

func decodeProofHash(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, apperr.BadRequest("proof_hash must be 32 bytes")
	}
	return b, nil
}

func (h *InclusionHandlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}

func (h *InclusionHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := apperr.As(err); ok {
		status = appErr.HTTPStatus()
	}
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": err.Error()},
	})
}
