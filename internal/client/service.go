package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

const (
	installationIDKey    = "installation_id"
	defaultQueryTimeout  = 5 * time.Second
	defaultSyncInterval  = 30 * time.Minute
	defaultPruneInterval = 6 * time.Hour
	defaultPruneWindow   = 48 * time.Hour
)

// ServiceDeps wires the client facade.
type ServiceDeps struct {
	Queue   *Queue
	Cache   *Cache
	Syncer  *Syncer
	Store   ports.QueueStore
	Querier ports.ConsensusQuerier

	QueryTimeout  time.Duration
	SyncInterval  time.Duration
	PruneInterval time.Duration
	PruneWindow   time.Duration
	Logger        *slog.Logger
}

// Service is what the UI layer calls.
type Service struct {
	queue   *Queue
	cache   *Cache
	syncer  *Syncer
	store   ports.QueueStore
	querier ports.ConsensusQuerier

	queryTimeout  time.Duration
	syncInterval  time.Duration
	pruneInterval time.Duration
	pruneWindow   time.Duration
	logger        *slog.Logger
}

// NewService constructs the facade.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		queue:         deps.Queue,
		cache:         deps.Cache,
		syncer:        deps.Syncer,
		store:         deps.Store,
		querier:       deps.Querier,
		queryTimeout:  deps.QueryTimeout,
		syncInterval:  deps.SyncInterval,
		pruneInterval: deps.PruneInterval,
		pruneWindow:   deps.PruneWindow,
		logger:        deps.Logger,
	}
	if s.queryTimeout <= 0 {
		s.queryTimeout = defaultQueryTimeout
	}
	if s.syncInterval <= 0 {
		s.syncInterval = defaultSyncInterval
	}
	if s.pruneInterval <= 0 {
		s.pruneInterval = defaultPruneInterval
	}
	if s.pruneWindow <= 0 {
		s.pruneWindow = defaultPruneWindow
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ReporterID returns this installation's anonymous id, creating it on first use.
func (s *Service) ReporterID(ctx context.Context) (string, error) {
	id, ok, err := s.store.Setting(ctx, installationIDKey)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.store.SaveSetting(ctx, installationIDKey, id); err != nil {
		return "", fmt.Errorf("save installation id: %w", err)
	}
	s.logger.Info("installation id created", "reporter", id)
	return id, nil
}

// ReportItem queues a report for itemID.
func (s *Service) ReportItem(ctx context.Context, itemID, collectionID string) error {
	return s.enqueue(ctx, domain.OpReport, itemID, collectionID)
}

// UndoReport queues the withdrawal of this installation's report for itemID.
func (s *Service) UndoReport(ctx context.Context, itemID string) error {
	return s.enqueue(ctx, domain.OpRemove, itemID, "")
}

func (s *Service) enqueue(ctx context.Context, op domain.BatchOp, itemID, collectionID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errors.New("item id is required")
	}
	reporter, err := s.ReporterID(ctx)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, domain.BatchEntry{Op: op, ItemID: itemID, CollectionID: collectionID, ReporterID: reporter})
}

// CheckIsMarked answers from the cache once it has synced. Before that it asks the server
// directly, and any failure there counts as unmarked.
func (s *Service) CheckIsMarked(ctx context.Context, itemID string) bool {
	synced, err := s.cache.HasSynced(ctx)
	if err == nil && synced {
		return s.cache.IsMarked(ctx, itemID)
	}
	if s.querier == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	agg, err := s.querier.GetAggregate(ctx, itemID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("direct marked query failed", "item", itemID, "err", err)
		}
		return false
	}
	return agg.Marked
}

// CheckHasReported returns what is known locally about this installation's report on itemID.
func (s *Service) CheckHasReported(ctx context.Context, itemID string) (domain.LocalReportStatus, error) {
	return s.store.LocalStatus(ctx, itemID)
}

// GetTrustProfile reads this installation's trust from the server.
func (s *Service) GetTrustProfile(ctx context.Context) (domain.TrustProfile, error) {
	reporter, err := s.ReporterID(ctx)
	if err != nil {
		return domain.TrustProfile{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.querier.GetTrustProfile(ctx, reporter)
}

// Sync pulls the latest artifacts. Fetch outcomes drive the queue's online state.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	res, err := s.syncer.Sync(ctx)
	if err != nil && !errors.Is(err, domain.ErrInvalidBlob) && !errors.Is(err, domain.ErrBlobNotFound) {
		s.queue.SetOnline(ctx, false)
		return res, err
	}
	s.queue.SetOnline(ctx, true)
	return res, err
}

// Foreground flushes and syncs when the host becomes active.
func (s *Service) Foreground(ctx context.Context) {
	s.queue.Foreground(ctx)
	if _, err := s.Sync(ctx); err != nil {
		s.logger.Warn("foreground sync failed", "err", err)
	}
}

// Flush sends queued operations now.
func (s *Service) Flush(ctx context.Context) (FlushResult, error) {
	return s.queue.Flush(ctx)
}

// Run drives the periodic flush, sync and prune loops until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.queue.Run(ctx) })
	g.Go(func() error {
		return every(ctx, s.syncInterval, func() {
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Warn("sync failed", "err", err)
			}
		})
	})
	g.Go(func() error {
		return every(ctx, s.pruneInterval, func() {
			n, err := s.cache.Prune(ctx, s.pruneWindow)
			if err != nil {
				s.logger.Warn("prune failed", "err", err)
				return
			}
			if n > 0 {
				s.logger.Info("cache pruned", "removed", n)
			}
		})
	})
	return g.Wait()
}

// every runs fn now and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) error {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}
