package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(openCacheStore(t), discard(), func() time.Time { return t0 })
}

func TestEmptyCacheAnswersUnmarked(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()
	require.False(t, c.IsMarked(ctx, "anything"))
	synced, err := c.HasSynced(ctx)
	require.NoError(t, err)
	require.False(t, synced)
}

func TestSnapshotIsFullReplace(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	out, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0, marked("A", t0), unmarked("B", t0)))
	require.NoError(t, err)
	require.Equal(t, IngestApplied, out)
	require.True(t, c.IsMarked(ctx, "A"))
	require.False(t, c.IsMarked(ctx, "B"))

	_, err = c.IngestSnapshot(ctx, snapshotBlob(t, t0.Add(time.Hour), marked("C", t0)))
	require.NoError(t, err)
	require.False(t, c.IsMarked(ctx, "A"))
	require.False(t, c.IsMarked(ctx, "B"))
	require.True(t, c.IsMarked(ctx, "C"))
}

func TestOlderArtifactsAreIgnored(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0, marked("A", t0)))
	require.NoError(t, err)
	_, err = c.IngestDelta(ctx, deltaBlob(t, t0.Add(30*time.Minute), t0, marked("B", t0)))
	require.NoError(t, err)

	out, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0.Add(10*time.Minute)))
	require.NoError(t, err)
	require.Equal(t, IngestStale, out)

	out, err = c.IngestDelta(ctx, deltaBlob(t, t0.Add(30*time.Minute), t0, unmarked("B", t0)))
	require.NoError(t, err)
	require.Equal(t, IngestStale, out)

	require.True(t, c.IsMarked(ctx, "A"))
	require.True(t, c.IsMarked(ctx, "B"))
	wm, err := c.Watermark(ctx)
	require.NoError(t, err)
	require.Equal(t, t0.Add(30*time.Minute), wm)
}

func TestDeltaEvictsUnmarkedItems(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0, marked("Y", t0)))
	require.NoError(t, err)
	_, err = c.IngestDelta(ctx, deltaBlob(t, t0.Add(time.Hour), t0, unmarked("Y", t0.Add(time.Minute)), marked("N", t0)))
	require.NoError(t, err)

	require.False(t, c.IsMarked(ctx, "Y"))
	_, ok, err := c.Get(ctx, "Y")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, c.IsMarked(ctx, "N"))
}

func TestDeltaGapIsReported(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.IngestDelta(ctx, deltaBlob(t, t0, t0.Add(-time.Hour), marked("A", t0)))
	require.ErrorIs(t, err, ErrDeltaGap)

	_, err = c.IngestSnapshot(ctx, snapshotBlob(t, t0))
	require.NoError(t, err)
	_, err = c.IngestDelta(ctx, deltaBlob(t, t0.Add(2*time.Hour), t0.Add(time.Hour), marked("A", t0)))
	require.ErrorIs(t, err, ErrDeltaGap)
	require.False(t, c.IsMarked(ctx, "A"))
}

func TestInvalidBlobLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0, marked("A", t0)))
	require.NoError(t, err)

	_, err = c.IngestSnapshot(ctx, []byte(`{"metadata":{"generatedAt":"2027-01-01T00:00:00Z"}}`))
	require.ErrorIs(t, err, domain.ErrInvalidBlob)
	require.True(t, c.IsMarked(ctx, "A"))
}

func TestPruneByWindow(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.IngestSnapshot(ctx, snapshotBlob(t, t0, marked("old", t0.Add(-72*time.Hour)), marked("new", t0.Add(-time.Hour))))
	require.NoError(t, err)

	n, err := c.Prune(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, c.IsMarked(ctx, "old"))
	require.True(t, c.IsMarked(ctx, "new"))
}
