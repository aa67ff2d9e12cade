package proving

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/certen/proof-aggregator/internal/batch"
)

// HTTPLaneProver implements batch.LaneProver against one lane's external
// recursive-aggregation session service, the same request/poll/convert
// shape as HTTPReductionBackend but carrying assumptions and a
// stark-to-snark conversion step per spec.md §4.6.
type HTTPLaneProver struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPLaneProver wires a lane prover against baseURL. Callers
// construct one instance per lane (lane R against the RISC-Zero
// aggregation service, lane S against the SP1 prover network).
func NewHTTPLaneProver(baseURL string) *HTTPLaneProver {
	return &HTTPLaneProver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitAggregationRequest struct {
	AggregationInput []byte   `json:"aggregation_input"`
	Assumptions      [][]byte `json:"assumptions"`
}

func (p *HTTPLaneProver) SubmitAggregation(ctx context.Context, aggregationInput []byte, assumptions [][]byte) (string, error) {
	var out submitSessionResponse
	req := submitAggregationRequest{AggregationInput: aggregationInput, Assumptions: assumptions}
	if err := p.postJSON(ctx, "/aggregations", req, &out); err != nil {
		return "", fmt.Errorf("proving: submit lane aggregation: %w", err)
	}
	return out.SessionID, nil
}

func (p *HTTPLaneProver) Poll(ctx context.Context, sessionID string) (batch.LanePollResult, error) {
	var out pollResponse
	if err := p.getJSON(ctx, "/aggregations/"+sessionID, &out); err != nil {
		return batch.LanePollResult{}, fmt.Errorf("proving: poll lane aggregation %s: %w", sessionID, err)
	}
	result := batch.LanePollResult{
		Receipt:    out.Receipt,
		CyclesUsed: out.CyclesUsed,
	}
	switch out.State {
	case "succeeded":
		result.State = batch.LaneSessionSucceeded
	case "failed":
		result.State = batch.LaneSessionFailed
		if out.Error != "" {
			result.Err = fmt.Errorf("proving: lane aggregation %s failed: %s", sessionID, out.Error)
		}
	default:
		result.State = batch.LaneSessionRunning
	}
	return result, nil
}

type starkToSnarkResponse struct {
	SnarkReceipt []byte `json:"snark_receipt"`
	PublicInputs []byte `json:"public_inputs"`
}

func (p *HTTPLaneProver) StarkToSnark(ctx context.Context, sessionID string) ([]byte, []byte, error) {
	var out starkToSnarkResponse
	if err := p.postJSON(ctx, "/aggregations/"+sessionID+"/convert", nil, &out); err != nil {
		return nil, nil, fmt.Errorf("proving: stark-to-snark conversion for %s: %w", sessionID, err)
	}
	return out.SnarkReceipt, out.PublicInputs, nil
}

// VerifyLocally checks the converted SNARK receipt's embedded verifying
// id, the same fixed-width header convention as HTTPReductionBackend.
func (p *HTTPLaneProver) VerifyLocally(snarkReceipt []byte, verifyingID [8]uint32) error {
	if len(snarkReceipt) < 32 {
		return fmt.Errorf("proving: snark receipt too short to carry a verifying id")
	}
	var got [8]uint32
	for i := 0; i < 8; i++ {
		got[i] = uint32(snarkReceipt[i*4])<<24 | uint32(snarkReceipt[i*4+1])<<16 | uint32(snarkReceipt[i*4+2])<<8 | uint32(snarkReceipt[i*4+3])
	}
	if got != verifyingID {
		return fmt.Errorf("proving: snark receipt verifying id %v does not match expected %v", got, verifyingID)
	}
	return nil
}

func (p *HTTPLaneProver) postJSON(ctx context.Context, path string, in, out any) error {
	return (&HTTPReductionBackend{baseURL: p.baseURL, httpClient: p.httpClient}).postJSON(ctx, path, in, out)
}

func (p *HTTPLaneProver) getJSON(ctx context.Context, path string, out any) error {
	return (&HTTPReductionBackend{baseURL: p.baseURL, httpClient: p.httpClient}).getJSON(ctx, path, out)
}
