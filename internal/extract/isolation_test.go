package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolationFreshIDPerCall(t *testing.T) {
	m := NewIsolationManager()
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		err := m.WithFreshContext(context.Background(), func(_ context.Context, call *CallContext) error {
			require.NotEmpty(t, call.ID)
			assert.False(t, seen[call.ID], "context id reused across calls")
			seen[call.ID] = true
			return nil
		})
		require.NoError(t, err)
	}
}

func TestIsolationScratchDoesNotLeak(t *testing.T) {
	m := NewIsolationManager()
	err := m.WithFreshContext(context.Background(), func(_ context.Context, call *CallContext) error {
		call.Set("transcript", "stage one saw everything")
		v, ok := call.Get("transcript")
		require.True(t, ok)
		require.Equal(t, "stage one saw everything", v)
		return nil
	})
	require.NoError(t, err)

	err = m.WithFreshContext(context.Background(), func(_ context.Context, call *CallContext) error {
		_, ok := call.Get("transcript")
		assert.False(t, ok, "scratch state leaked into the next call")
		return nil
	})
	require.NoError(t, err)
}

func TestIsolationErrorPassthrough(t *testing.T) {
	m := NewIsolationManager()
	boom := errors.New("boom")
	err := m.WithFreshContext(context.Background(), func(context.Context, *CallContext) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
