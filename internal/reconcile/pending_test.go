package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

func TestMemoryPendingStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPendingStore()

	p := &PendingImport{ID: "imp-1", SessionID: 1, IterationID: 2, State: State{
		Expected: []session.Response{resp("A", guidQ1, "A", 1)},
	}}
	require.NoError(t, s.Save(ctx, p))
	p.State.Expected[0].Answer = "mutated"

	got, err := s.Load(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.State.Expected[0].Answer)
	assert.True(t, got.State.Expected[0].Timestamp.Equal(at(1)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Delete(ctx, "imp-1"))
	_, err = s.Load(ctx, "imp-1")
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestMemoryPendingStoreLock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPendingStore()

	unlock, err := s.Lock(ctx, "imp-1")
	require.NoError(t, err)
	_, err = s.Lock(ctx, "imp-1")
	assert.ErrorIs(t, err, ErrImportBusy)

	require.NoError(t, unlock())
	unlock, err = s.Lock(ctx, "imp-1")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestPendingKeys(t *testing.T) {
	assert.Equal(t, "import:pending:abc", pendingKey("abc"))
	assert.Equal(t, "import:lock:abc", lockKey("abc"))
}
