package blob

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

func TestFSPutReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFS(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, domain.SnapshotBlobName)
	require.ErrorIs(t, err, domain.ErrBlobNotFound)

	require.NoError(t, store.Put(ctx, domain.SnapshotBlobName, []byte(`{"v":1}`)))
	require.NoError(t, store.Put(ctx, domain.SnapshotBlobName, []byte(`{"v":2}`)))

	data, err := store.Get(ctx, domain.SnapshotBlobName)
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFSRejectsPathNames(t *testing.T) {
	t.Parallel()

	store, err := NewFS(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.Put(context.Background(), "../escape.json", nil))
	_, err = store.Get(context.Background(), "a/b")
	require.Error(t, err)
}
