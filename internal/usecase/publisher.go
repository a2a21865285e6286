package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
	"SlopConsensus/internal/wire"
)

const (
	defaultSnapshotWindow = 48 * time.Hour
	defaultDeltaOverlap   = 2 * time.Minute
)

// PublisherDeps wires the snapshot/delta publisher.
type PublisherDeps struct {
	Store   ports.AggregateStore
	Blobs   ports.BlobStore
	Window  time.Duration
	// Overlap back-dates the scheduled delta's since so recomputes that were stamped before
	// the snapshot but committed after its query still reach clients.
	Overlap time.Duration
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Publisher materializes marked items into the snapshot and delta blobs.
type Publisher struct {
	store   ports.AggregateStore
	blobs   ports.BlobStore
	window  time.Duration
	overlap time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.Mutex
	lastSnapshot time.Time
}

// NewPublisher constructs the publisher.
func NewPublisher(deps PublisherDeps) *Publisher {
	p := &Publisher{
		store:   deps.Store,
		blobs:   deps.Blobs,
		window:  deps.Window,
		overlap: deps.Overlap,
		logger:  deps.Logger,
		now:     deps.Clock,
	}
	if p.window <= 0 {
		p.window = defaultSnapshotWindow
	}
	if p.overlap <= 0 {
		p.overlap = defaultDeltaOverlap
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// GenerateSnapshot writes every currently marked item updated within the window.
func (p *Publisher) GenerateSnapshot(ctx context.Context) (domain.ArtifactMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generateSnapshot(ctx)
}

func (p *Publisher) generateSnapshot(ctx context.Context) (domain.ArtifactMetadata, error) {
	now := p.now().UTC()
	start := now.Add(-p.window)
	aggs, err := p.store.QueryMarkedItemsSince(ctx, domain.AggregateQuery{WindowStart: start})
	if err != nil {
		return p.fail(domain.KindSnapshot, fmt.Errorf("query snapshot items: %w", err))
	}

	meta := domain.ArtifactMetadata{
		Kind:        domain.KindSnapshot,
		GeneratedAt: now,
		WindowStart: start,
		WindowEnd:   now,
	}
	meta, err = p.write(ctx, domain.SnapshotBlobName, meta, aggs)
	if err != nil {
		return p.fail(domain.KindSnapshot, err)
	}
	p.lastSnapshot = now
	return meta, nil
}

// GenerateDelta writes every item whose state changed after since, evictions included.
func (p *Publisher) GenerateDelta(ctx context.Context, since time.Time) (domain.ArtifactMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generateDelta(ctx, since)
}

func (p *Publisher) generateDelta(ctx context.Context, since time.Time) (domain.ArtifactMetadata, error) {
	now := p.now().UTC()
	aggs, err := p.store.QueryMarkedItemsSince(ctx, domain.AggregateQuery{Since: since, IncludeEvicted: true})
	if err != nil {
		return p.fail(domain.KindDelta, fmt.Errorf("query delta items: %w", err))
	}

	meta := domain.ArtifactMetadata{
		Kind:        domain.KindDelta,
		GeneratedAt: now,
		Since:       since.UTC(),
	}
	meta, err = p.write(ctx, domain.DeltaBlobName, meta, aggs)
	if err != nil {
		return p.fail(domain.KindDelta, err)
	}
	return meta, nil
}

// PublishDelta writes the delta covering everything since the latest snapshot, reaching
// back by the overlap. Without any snapshot on record it publishes one first.
func (p *Publisher) PublishDelta(ctx context.Context) (domain.ArtifactMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	since, err := p.snapshotTime(ctx)
	if err != nil {
		return p.fail(domain.KindDelta, err)
	}
	if since.IsZero() {
		snap, err := p.generateSnapshot(ctx)
		if err != nil {
			return domain.ArtifactMetadata{}, err
		}
		since = snap.GeneratedAt
	}
	return p.generateDelta(ctx, since.Add(-p.overlap))
}

func (p *Publisher) snapshotTime(ctx context.Context) (time.Time, error) {
	if !p.lastSnapshot.IsZero() {
		return p.lastSnapshot, nil
	}

	data, err := p.blobs.Get(ctx, domain.SnapshotBlobName)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read snapshot: %w", err)
	}
	art, err := wire.Decode(data)
	if err != nil {
		p.logger.Warn("existing snapshot unreadable, regenerating", "err", err)
		return time.Time{}, nil
	}
	p.lastSnapshot = art.Metadata.GeneratedAt
	return p.lastSnapshot, nil
}

func (p *Publisher) write(ctx context.Context, name string, meta domain.ArtifactMetadata, aggs []domain.ItemAggregate) (domain.ArtifactMetadata, error) {
	art := domain.Artifact{Metadata: meta, Items: make([]domain.CacheEntry, 0, len(aggs))}
	for _, agg := range aggs {
		art.Items = append(art.Items, domain.EntryFromAggregate(agg))
	}
	art.Metadata.ItemCount = len(art.Items)

	data, err := wire.Encode(art)
	if err != nil {
		return domain.ArtifactMetadata{}, err
	}
	if err := p.blobs.Put(ctx, name, data); err != nil {
		return domain.ArtifactMetadata{}, fmt.Errorf("put %s: %w", name, err)
	}

	metrics.ArtifactPublishes.WithLabelValues(string(meta.Kind), "ok").Inc()
	metrics.ArtifactItems.WithLabelValues(string(meta.Kind)).Set(float64(art.Metadata.ItemCount))
	p.logger.Info("artifact published", "blob", name, "items", art.Metadata.ItemCount, "generated_at", meta.GeneratedAt)
	return art.Metadata, nil
}

func (p *Publisher) fail(kind domain.ArtifactKind, err error) (domain.ArtifactMetadata, error) {
	metrics.ArtifactPublishes.WithLabelValues(string(kind), "error").Inc()
	p.logger.Error("artifact generation failed", "kind", kind, "err", err)
	return domain.ArtifactMetadata{}, err
}
