// Package proving holds the concrete, network-facing implementations of
// the narrow backend interfaces reduction.Worker and batch.Scheduler
// declare (reduction.Backend, batch.LaneProver, batch.EmptyLaneLoader;
// the final wrapper is batch.DefaultWrapper): the external STARK proving services (the
// RISC-Zero Bonsai-style session API for individual reduction and lane
// R aggregation, the SP1 prover network for lane S). They are grounded
// on the teacher's LiteClientAdapter: a thin net/http JSON client behind
// the package's own interface, with no retry/caching logic of its own
// beyond what the caller (reduction.Worker, batch.Scheduler) already
// provides.
package proving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/certen/proof-aggregator/internal/reduction"
)

// HTTPReductionBackend implements reduction.Backend against an external
// reducer session service reachable over HTTP.
type HTTPReductionBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPReductionBackend wires a backend against baseURL (e.g. a
// Bonsai-compatible session API endpoint).
func NewHTTPReductionBackend(baseURL string) *HTTPReductionBackend {
	return &HTTPReductionBackend{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type submitSessionRequest struct {
	Scheme string `json:"scheme"`
	Input  []byte `json:"input"`
}

type submitSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (b *HTTPReductionBackend) SubmitSession(ctx context.Context, scheme string, input []byte) (string, error) {
	var out submitSessionResponse
	if err := b.postJSON(ctx, "/sessions", submitSessionRequest{Scheme: scheme, Input: input}, &out); err != nil {
		return "", fmt.Errorf("proving: submit reduction session: %w", err)
	}
	return out.SessionID, nil
}

type pollResponse struct {
	State      string `json:"state"`
	Receipt    []byte `json:"receipt,omitempty"`
	CyclesUsed int64  `json:"cycles_used"`
	Error      string `json:"error,omitempty"`
}

func (b *HTTPReductionBackend) Poll(ctx context.Context, sessionID string) (reduction.PollResult, error) {
	var out pollResponse
	if err := b.getJSON(ctx, "/sessions/"+sessionID, &out); err != nil {
		return reduction.PollResult{}, fmt.Errorf("proving: poll reduction session %s: %w", sessionID, err)
	}
	result := reduction.PollResult{
		Receipt:    out.Receipt,
		CyclesUsed: out.CyclesUsed,
	}
	switch out.State {
	case "succeeded":
		result.State = reduction.SessionSucceeded
	case "failed":
		result.State = reduction.SessionFailed
		if out.Error != "" {
			result.Err = fmt.Errorf("proving: reduction session %s failed: %s", sessionID, out.Error)
		}
	default:
		result.State = reduction.SessionRunning
	}
	return result, nil
}

// VerifyReceipt checks the receipt's embedded verifying id matches the
// circuit's ReductionImage before the receipt is trusted locally. The
// receipt wire format is the reducer program's own, same as
// reduction.Worker.buildReducerInput's concatenation; here only the
// fixed-width verifying-id header at the front of the blob is read.
func (b *HTTPReductionBackend) VerifyReceipt(receipt []byte, verifyingID [8]uint32) error {
	if len(receipt) < 32 {
		return fmt.Errorf("proving: receipt too short to carry a verifying id")
	}
	var got [8]uint32
	for i := 0; i < 8; i++ {
		got[i] = uint32(receipt[i*4])<<24 | uint32(receipt[i*4+1])<<16 | uint32(receipt[i*4+2])<<8 | uint32(receipt[i*4+3])
	}
	if got != verifyingID {
		return fmt.Errorf("proving: receipt verifying id %v does not match expected %v", got, verifyingID)
	}
	return nil
}

func (b *HTTPReductionBackend) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *HTTPReductionBackend) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

func (b *HTTPReductionBackend) do(req *http.Request, out any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
