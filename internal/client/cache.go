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
	"SlopConsensus/internal/wire"
)

// ErrDeltaGap means a delta starts after the cache's watermark; a snapshot is needed first.
var ErrDeltaGap = errors.New("delta does not connect to the cached state")

// IngestOutcome tells whether an artifact changed the cache.
type IngestOutcome int

const (
	IngestApplied IngestOutcome = iota
	// IngestStale means the artifact was not newer than the watermark and was ignored.
	IngestStale
)

// Cache is the local view of marked items built from snapshots and deltas.
// Ingests, prunes and reads that depend on the watermark are serialized.
type Cache struct {
	store  ports.CacheStore
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewCache wraps a cache store.
func NewCache(store ports.CacheStore, logger *slog.Logger, clock func() time.Time) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{store: store, logger: logger, now: clock}
}

// IngestSnapshot replaces the whole cache with the blob's marked items.
func (c *Cache) IngestSnapshot(ctx context.Context, blob []byte) (IngestOutcome, error) {
	art, err := wire.Decode(blob)
	if err != nil {
		return IngestStale, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wm, err := c.store.Watermark(ctx)
	if err != nil {
		return IngestStale, err
	}
	if !art.Metadata.GeneratedAt.After(wm) {
		c.logger.Debug("snapshot not newer than watermark, ignored", "generated_at", art.Metadata.GeneratedAt, "watermark", wm)
		return IngestStale, nil
	}

	marked := make([]domain.CacheEntry, 0, len(art.Items))
	for _, e := range art.Items {
		if e.Marked {
			marked = append(marked, e)
		}
	}
	if err := c.store.Replace(ctx, marked, art.Metadata.GeneratedAt); err != nil {
		return IngestStale, fmt.Errorf("replace cache: %w", err)
	}
	c.logger.Info("snapshot ingested", "items", len(marked), "generated_at", art.Metadata.GeneratedAt)
	return IngestApplied, nil
}

// IngestDelta merges a delta: marked items are upserted, unmarked ones evicted.
// It returns ErrDeltaGap when the delta's since is newer than the watermark.
func (c *Cache) IngestDelta(ctx context.Context, blob []byte) (IngestOutcome, error) {
	art, err := wire.Decode(blob)
	if err != nil {
		return IngestStale, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wm, err := c.store.Watermark(ctx)
	if err != nil {
		return IngestStale, err
	}
	if !art.Metadata.GeneratedAt.After(wm) {
		return IngestStale, nil
	}
	if art.Metadata.Since.After(wm) {
		return IngestStale, fmt.Errorf("%w: since %s, watermark %s", ErrDeltaGap, art.Metadata.Since, wm)
	}

	var (
		upserts []domain.CacheEntry
		evicted []string
	)
	for _, e := range art.Items {
		if e.Marked {
			upserts = append(upserts, e)
		} else {
			evicted = append(evicted, e.ItemID)
		}
	}
	if err := c.store.Apply(ctx, upserts, evicted, art.Metadata.GeneratedAt); err != nil {
		return IngestStale, fmt.Errorf("apply delta: %w", err)
	}
	c.logger.Debug("delta ingested", "upserts", len(upserts), "evicted", len(evicted), "generated_at", art.Metadata.GeneratedAt)
	return IngestApplied, nil
}

// Prune drops entries whose last update is older than window.
func (c *Cache) Prune(ctx context.Context, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Prune(ctx, c.now().Add(-window))
}

// IsMarked never fails: unknown items and read errors count as unmarked.
func (c *Cache) IsMarked(ctx context.Context, itemID string) bool {
	e, ok, err := c.store.Get(ctx, itemID)
	if err != nil {
		c.logger.Warn("cache read failed", "item", itemID, "err", err)
		return false
	}
	return ok && e.Marked
}

// Get returns the cached entry for an item, if any.
func (c *Cache) Get(ctx context.Context, itemID string) (domain.CacheEntry, bool, error) {
	return c.store.Get(ctx, itemID)
}

// HasSynced reports whether any artifact was ever ingested.
func (c *Cache) HasSynced(ctx context.Context) (bool, error) {
	wm, err := c.store.Watermark(ctx)
	if err != nil {
		return false, err
	}
	return !wm.IsZero(), nil
}

// Watermark is the generation time of the latest ingested artifact.
func (c *Cache) Watermark(ctx context.Context) (time.Time, error) {
	return c.store.Watermark(ctx)
}
