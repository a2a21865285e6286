package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

const defaultFetchTimeout = 30 * time.Second

// SyncResult describes one sync run.
type SyncResult struct {
	// Skipped is set when another sync was already running.
	Skipped  bool
	Snapshot bool
	Delta    bool
}

// Syncer pulls published artifacts into the cache.
type Syncer struct {
	fetcher ports.BlobFetcher
	cache   *Cache
	timeout time.Duration
	logger  *slog.Logger
	running sync.Mutex
}

// NewSyncer constructs a syncer; timeout bounds each run.
func NewSyncer(fetcher ports.BlobFetcher, cache *Cache, timeout time.Duration, logger *slog.Logger) *Syncer {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{fetcher: fetcher, cache: cache, timeout: timeout, logger: logger}
}

// Sync fetches the delta, falling back to the snapshot when the cache is cold, the delta
// is missing, or the delta leaves a gap. An overlapping call returns immediately.
func (s *Syncer) Sync(ctx context.Context) (SyncResult, error) {
	if !s.running.TryLock() {
		return SyncResult{Skipped: true}, nil
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	synced, err := s.cache.HasSynced(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if !synced {
		return s.snapshot(ctx)
	}

	blob, err := s.fetcher.FetchBlob(ctx, domain.DeltaBlobName)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return s.snapshot(ctx)
	}
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch delta: %w", err)
	}

	outcome, err := s.cache.IngestDelta(ctx, blob)
	if errors.Is(err, ErrDeltaGap) {
		s.logger.Info("delta gap, fetching snapshot", "err", err)
		return s.snapshot(ctx)
	}
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Delta: outcome == IngestApplied}, nil
}

func (s *Syncer) snapshot(ctx context.Context) (SyncResult, error) {
	blob, err := s.fetcher.FetchBlob(ctx, domain.SnapshotBlobName)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	outcome, err := s.cache.IngestSnapshot(ctx, blob)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Snapshot: outcome == IngestApplied}, nil
}
