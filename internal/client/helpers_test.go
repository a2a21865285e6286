package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/infrastructure/localstore"
	"SlopConsensus/internal/wire"
)

var t0 = time.Date(2026, time.July, 14, 18, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openQueueStore(t *testing.T) *localstore.Queue {
	t.Helper()
	q, err := localstore.OpenQueue(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func openCacheStore(t *testing.T) *localstore.BadgerCache {
	t.Helper()
	c, err := localstore.OpenBadgerCache("", discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fakeSubmitter answers every entry with the status chosen by respond.
type fakeSubmitter struct {
	mu      sync.Mutex
	batches [][]domain.BatchEntry
	err     error
	respond func(domain.BatchEntry) domain.EntryStatus
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, entries []domain.BatchEntry) ([]domain.EntryResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]domain.BatchEntry(nil), entries...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.EntryResult, len(entries))
	for i, e := range entries {
		status := domain.StatusAccepted
		if f.respond != nil {
			status = f.respond(e)
		}
		out[i] = domain.EntryResult{Index: i, ItemID: e.ItemID, Status: status}
	}
	return out, nil
}

func (f *fakeSubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeFetcher struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
	hits  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{blobs: map[string][]byte{}, hits: map[string]int{}}
}

func (f *fakeFetcher) FetchBlob(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[name]++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.blobs[name]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return data, nil
}

func (f *fakeFetcher) put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[name] = data
}

type fakeQuerier struct {
	aggregates map[string]domain.ItemAggregate
	err        error
}

func (f *fakeQuerier) GetAggregate(_ context.Context, itemID string) (domain.ItemAggregate, error) {
	if f.err != nil {
		return domain.ItemAggregate{}, f.err
	}
	agg, ok := f.aggregates[itemID]
	if !ok {
		return domain.ItemAggregate{}, domain.ErrNotFound
	}
	return agg, nil
}

func (f *fakeQuerier) GetTrustProfile(_ context.Context, reporterID string) (domain.TrustProfile, error) {
	if f.err != nil {
		return domain.TrustProfile{}, f.err
	}
	return domain.TrustProfile{ReporterID: reporterID, TrustScore: 0.7}, nil
}

var errNetwork = errors.New("dial tcp: connection refused")

func snapshotBlob(t *testing.T, generated time.Time, entries ...domain.CacheEntry) []byte {
	t.Helper()
	data, err := wire.Encode(domain.Artifact{
		Metadata: domain.ArtifactMetadata{Kind: domain.KindSnapshot, GeneratedAt: generated, WindowStart: generated.Add(-48 * time.Hour), WindowEnd: generated},
		Items:    entries,
	})
	require.NoError(t, err)
	return data
}

func deltaBlob(t *testing.T, generated, since time.Time, entries ...domain.CacheEntry) []byte {
	t.Helper()
	data, err := wire.Encode(domain.Artifact{
		Metadata: domain.ArtifactMetadata{Kind: domain.KindDelta, GeneratedAt: generated, Since: since},
		Items:    entries,
	})
	require.NoError(t, err)
	return data
}

func marked(id string, updated time.Time) domain.CacheEntry {
	return domain.CacheEntry{ItemID: id, Marked: true, EffectiveScore: 1.4, ReportCount: 2, FirstReportAt: updated, LastUpdateAt: updated}
}

func unmarked(id string, updated time.Time) domain.CacheEntry {
	return domain.CacheEntry{ItemID: id, Marked: false, EffectiveScore: 0.7, ReportCount: 1, FirstReportAt: updated, LastUpdateAt: updated}
}
