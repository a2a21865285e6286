package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/infrastructure/localstore"
)

func newTestQueue(t *testing.T, sub *fakeSubmitter) (*Queue, *queueState) {
	t.Helper()
	store := openQueueStore(t)
	q := NewQueue(QueueDeps{Store: store, Submitter: sub, Logger: discard(), Clock: func() time.Time { return t0 }})
	return q, &queueState{store: store}
}

type queueState struct {
	store *localstore.Queue
}

func (p *queueState) len(t *testing.T) int {
	t.Helper()
	n, err := p.store.Len(context.Background())
	require.NoError(t, err)
	return n
}

func (p *queueState) status(t *testing.T, item string) domain.LocalReportStatus {
	t.Helper()
	st, err := p.store.LocalStatus(context.Background(), item)
	require.NoError(t, err)
	return st
}

func reportOf(item string) domain.BatchEntry {
	return domain.BatchEntry{Op: domain.OpReport, ItemID: item, ReporterID: "me"}
}

func removalOf(item string) domain.BatchEntry {
	return domain.BatchEntry{Op: domain.OpRemove, ItemID: item, ReporterID: "me"}
}

func TestEnqueueDeduplicatesAndTracksStatus(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	require.Equal(t, 1, s.len(t))
	require.Equal(t, domain.LocalPending, s.status(t, "v1"))

	res, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	require.Equal(t, 1, res.Settled)
	require.Zero(t, res.Remaining)
	require.Equal(t, domain.LocalConfirmed, s.status(t, "v1"))
}

func TestRemovalCancelsQueuedReport(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	require.NoError(t, q.Enqueue(ctx, removalOf("v1")))
	require.Zero(t, s.len(t))
	require.Equal(t, domain.LocalNone, s.status(t, "v1"))

	_, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Zero(t, sub.calls())
}

func TestReportCancelsQueuedRemoval(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	_, err := q.Flush(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, removalOf("v1")))
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	require.Zero(t, s.len(t))
	require.Equal(t, domain.LocalConfirmed, s.status(t, "v1"))
}

func TestCapTriggersFlush(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()

	for i := 0; i < defaultQueueCap-1; i++ {
		require.NoError(t, q.Enqueue(ctx, reportOf(string(rune('a'+i)))))
	}
	require.Zero(t, sub.calls())

	require.NoError(t, q.Enqueue(ctx, reportOf("z")))
	require.Equal(t, 1, sub.calls())
	require.Len(t, sub.batches[0], defaultQueueCap)
	require.Zero(t, s.len(t))
}

func TestOfflineSuppressesFlushUntilReconnect(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()

	q.SetOnline(ctx, false)
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))
	_, err := q.Flush(ctx)
	require.ErrorIs(t, err, domain.ErrOffline)
	require.Zero(t, sub.calls())
	require.Equal(t, 1, s.len(t))

	q.SetOnline(ctx, true)
	require.Equal(t, 1, sub.calls())
	require.Zero(t, s.len(t))
}

func TestRetryCeilingMarksFailure(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{respond: func(domain.BatchEntry) domain.EntryStatus { return domain.StatusError }}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))

	for i := 0; i < defaultMaxAttempts-1; i++ {
		res, err := q.Flush(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, res.Retrying)
		require.Equal(t, 1, s.len(t))
		require.Equal(t, domain.LocalPending, s.status(t, "v1"))
	}

	res, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.GaveUp)
	require.Zero(t, s.len(t))
	require.Equal(t, domain.LocalFailed, s.status(t, "v1"))
	require.True(t, q.Online())
}

func TestTransportFailureKeepsEntriesQueued(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{err: errNetwork}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))

	res, err := q.Flush(ctx)
	require.ErrorIs(t, err, errNetwork)
	require.Equal(t, 1, res.Deferred)
	require.Zero(t, res.Retrying)
	require.False(t, q.Online())

	for i := 0; i < defaultMaxAttempts+1; i++ {
		_, err := q.Flush(ctx)
		require.ErrorIs(t, err, domain.ErrOffline)
	}
	require.Equal(t, 1, sub.calls())
	require.Equal(t, 1, s.len(t))
	require.Equal(t, domain.LocalPending, s.status(t, "v1"))

	pending, err := s.store.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, pending[0].Attempts)

	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()

	q.SetOnline(ctx, true)
	require.Equal(t, 2, sub.calls())
	require.Zero(t, s.len(t))
	require.Equal(t, domain.LocalConfirmed, s.status(t, "v1"))
}

func TestPerEntryResults(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{respond: func(e domain.BatchEntry) domain.EntryStatus {
		switch e.ItemID {
		case "dup":
			return domain.StatusDuplicate
		case "withdrawn":
			return domain.StatusRejected
		case "flaky":
			return domain.StatusError
		}
		return domain.StatusAccepted
	}}
	q, s := newTestQueue(t, sub)
	ctx := context.Background()
	for _, item := range []string{"ok", "dup", "withdrawn", "flaky"} {
		require.NoError(t, q.Enqueue(ctx, reportOf(item)))
	}

	res, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, res.Settled)
	require.Equal(t, 1, res.Retrying)
	require.Equal(t, 1, res.Remaining)

	require.Equal(t, domain.LocalConfirmed, s.status(t, "ok"))
	require.Equal(t, domain.LocalConfirmed, s.status(t, "dup"))
	require.Equal(t, domain.LocalFailed, s.status(t, "withdrawn"))
	require.Equal(t, domain.LocalPending, s.status(t, "flaky"))
}

func TestOnlyOneFlushInFlight(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	q, _ := newTestQueue(t, sub)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, reportOf("v1")))

	done := make(chan FlushResult)
	go func() {
		res, _ := q.Flush(ctx)
		done <- res
	}()
	<-sub.entered

	res, err := q.Flush(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped)

	close(sub.block)
	first := <-done
	require.False(t, first.Skipped)
	require.Equal(t, 1, first.Settled)
}
