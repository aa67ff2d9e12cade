package batch

import (
	"context"
	"testing"
	"time"
)

type fakeLaneProver struct {
	submitted  []byte
	pollResult LanePollResult
	snark      []byte
	publicIn   []byte
}

func (f *fakeLaneProver) SubmitAggregation(ctx context.Context, aggregationInput []byte, assumptions [][]byte) (string, error) {
	f.submitted = aggregationInput
	return "lane-session-1", nil
}

func (f *fakeLaneProver) Poll(ctx context.Context, sessionID string) (LanePollResult, error) {
	return f.pollResult, nil
}

func (f *fakeLaneProver) StarkToSnark(ctx context.Context, sessionID string) ([]byte, []byte, error) {
	return f.snark, f.publicIn, nil
}

func (f *fakeLaneProver) VerifyLocally(snarkReceipt []byte, verifyingID [8]uint32) error {
	return nil
}

type fakeEmptyLaneLoader struct {
	result *EmptyLaneResult
}

func (f *fakeEmptyLaneLoader) LoadEmptyLaneS(ctx context.Context) (*EmptyLaneResult, error) {
	return f.result, nil
}

func TestPollLaneUntilTerminalReturnsOnSucceeded(t *testing.T) {
	prover := &fakeLaneProver{pollResult: LanePollResult{State: LaneSessionSucceeded, CyclesUsed: 99}}
	s := &Scheduler{params: Params{LanePollInterval: 5 * time.Millisecond}}

	result := s.pollLaneUntilTerminal(context.Background(), prover, "session-x")
	if result.State != LaneSessionSucceeded {
		t.Errorf("expected succeeded, got %v", result.State)
	}
	if result.CyclesUsed != 99 {
		t.Errorf("expected cycles 99, got %d", result.CyclesUsed)
	}
}

func TestEmptyLaneSResultUsesLoader(t *testing.T) {
	want := &EmptyLaneResult{Root: [32]byte{7}, PublicInputs: []byte("empty-lane-s")}
	s := &Scheduler{emptyS: &fakeEmptyLaneLoader{result: want}}

	got, err := s.emptyLaneSResult(context.Background())
	if err != nil {
		t.Fatalf("emptyLaneSResult: %v", err)
	}
	if got.root != want.Root {
		t.Errorf("expected root %x, got %x", want.Root, got.root)
	}
	if string(got.publicInputs) != "empty-lane-s" {
		t.Errorf("unexpected public inputs: %s", got.publicInputs)
	}
}
