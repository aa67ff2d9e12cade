package reduction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeArtifactStore struct{}

func (fakeArtifactStore) Read(ctx context.Context, path string) ([]byte, error) {
	return []byte(path), nil
}

type fakeBackend struct {
	submitted []string
}

func (f *fakeBackend) SubmitSession(ctx context.Context, scheme string, input []byte) (string, error) {
	f.submitted = append(f.submitted, scheme)
	return "session-1", nil
}

func (f *fakeBackend) Poll(ctx context.Context, sessionID string) (PollResult, error) {
	return PollResult{State: SessionSucceeded, CyclesUsed: 42}, nil
}

func (f *fakeBackend) VerifyReceipt(receipt []byte, verifyingID [8]uint32) error {
	return nil
}

func TestArtifactStoreReadsByPath(t *testing.T) {
	store := fakeArtifactStore{}
	b, err := store.Read(context.Background(), "vk-path")
	require.NoError(t, err)
	require.Equal(t, []byte("vk-path"), b)
}

func TestFakeBackendReportsSucceeded(t *testing.T) {
	b := &fakeBackend{}
	id, err := b.SubmitSession(context.Background(), "Risc0", []byte("input"))
	require.NoError(t, err)
	require.Equal(t, "session-1", id)

	result, err := b.Poll(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, SessionSucceeded, result.State)
	require.Equal(t, int64(42), result.CyclesUsed)
}
