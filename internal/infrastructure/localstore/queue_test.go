package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

var t0 = time.Date(2026, time.June, 3, 8, 0, 0, 0, time.UTC)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := OpenQueue(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func queued(op domain.BatchOp, item string) ports.QueuedEntry {
	return ports.QueuedEntry{
		Entry:      domain.BatchEntry{Op: op, ItemID: item, CollectionID: "c", ReporterID: "me"},
		EnqueuedAt: t0,
	}
}

func TestQueueDeduplicatesAndKeepsOrder(t *testing.T) {
	t.Parallel()

	q := newQueue(t)
	ctx := context.Background()

	added, err := q.Append(ctx, queued(domain.OpReport, "b"))
	require.NoError(t, err)
	require.True(t, added)
	added, err = q.Append(ctx, queued(domain.OpReport, "b"))
	require.NoError(t, err)
	require.False(t, added)
	_, err = q.Append(ctx, queued(domain.OpReport, "a"))
	require.NoError(t, err)
	_, err = q.Append(ctx, queued(domain.OpRemove, "b"))
	require.NoError(t, err)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, "b", pending[0].Entry.ItemID)
	require.Equal(t, "a", pending[1].Entry.ItemID)
	require.Equal(t, domain.OpRemove, pending[2].Entry.Op)
	require.Equal(t, t0, pending[0].EnqueuedAt)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestQueueFindAttemptsDelete(t *testing.T) {
	t.Parallel()

	q := newQueue(t)
	ctx := context.Background()
	_, err := q.Append(ctx, queued(domain.OpReport, "x"))
	require.NoError(t, err)

	require.NoError(t, q.SetAttempts(ctx, domain.OpReport, "x", "me", 2))
	entry, ok, err := q.Find(ctx, domain.OpReport, "x", "me")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, entry.Attempts)

	require.NoError(t, q.Delete(ctx, domain.OpReport, "x", "me"))
	_, ok, err = q.Find(ctx, domain.OpReport, "x", "me")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalStatusAndSettings(t *testing.T) {
	t.Parallel()

	q := newQueue(t)
	ctx := context.Background()

	status, err := q.LocalStatus(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, domain.LocalNone, status)

	require.NoError(t, q.SetLocalStatus(ctx, "x", domain.LocalPending))
	require.NoError(t, q.SetLocalStatus(ctx, "x", domain.LocalConfirmed))
	status, err = q.LocalStatus(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, domain.LocalConfirmed, status)

	require.NoError(t, q.SetLocalStatus(ctx, "x", domain.LocalNone))
	status, err = q.LocalStatus(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, domain.LocalNone, status)

	_, ok, err := q.Setting(ctx, "installation_id")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, q.SaveSetting(ctx, "installation_id", "abc"))
	require.NoError(t, q.SaveSetting(ctx, "installation_id", "def"))
	v, ok, err := q.Setting(ctx, "installation_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "def", v)
}
