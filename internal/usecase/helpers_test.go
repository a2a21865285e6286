package usecase

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/consensus"
	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/infrastructure/storage"
	"SlopConsensus/internal/ports"
)

var t0 = time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	m.puts++
	return nil
}

func (m *memBlobs) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[name]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return data, nil
}

type testServer struct {
	clock      *fakeClock
	store      *storage.SQLStore
	blobs      *memBlobs
	bootstrap  *Bootstrap
	aggregator *Aggregator
	ingestion  *Ingestion
	evaluator  *Evaluator
	publisher  *Publisher
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, storage.SQLite, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := storage.NewSQLStore(db, storage.SQLite)
	require.NoError(t, store.Migrate(ctx))

	clock := &fakeClock{now: t0}
	logger := discardLogger()
	blobs := newMemBlobs()

	bootstrap := NewBootstrap(BootstrapDeps{
		Reporters: store,
		Community: store,
		Trust:     consensus.DefaultTrustParams(),
		Params:    consensus.DefaultCommunityParams(),
		Logger:    logger,
		Clock:     clock.Now,
	})
	aggregator := NewAggregator(AggregatorDeps{Store: store, Logger: logger, Clock: clock.Now, Strict: true})

	return &testServer{
		clock:      clock,
		store:      store,
		blobs:      blobs,
		bootstrap:  bootstrap,
		aggregator: aggregator,
		ingestion: NewIngestion(IngestionDeps{
			Store:      store,
			Bootstrap:  bootstrap,
			Aggregator: aggregator,
			Logger:     logger,
			Clock:      clock.Now,
		}),
		evaluator: NewEvaluator(EvaluatorDeps{Store: store, Logger: logger, Clock: clock.Now}),
		publisher: NewPublisher(PublisherDeps{Store: store, Blobs: blobs, Logger: logger, Clock: clock.Now}),
	}
}

func (s *testServer) submit(t *testing.T, entries ...domain.BatchEntry) []domain.EntryResult {
	t.Helper()
	results, err := s.ingestion.SubmitBatch(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, results, len(entries))
	return results
}

func report(item, reporter string) domain.BatchEntry {
	return domain.BatchEntry{Op: domain.OpReport, ItemID: item, CollectionID: "chan-" + item, ReporterID: reporter}
}

func removal(item, reporter string) domain.BatchEntry {
	return domain.BatchEntry{Op: domain.OpRemove, ItemID: item, ReporterID: reporter}
}

var _ ports.BlobStore = (*memBlobs)(nil)
