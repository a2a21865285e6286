package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"SlopConsensus/internal/client"
	"SlopConsensus/internal/config"
	"SlopConsensus/internal/infrastructure/httpclient"
	"SlopConsensus/internal/infrastructure/localstore"
	"SlopConsensus/internal/logging"
	"SlopConsensus/internal/surface"
)

// Client is the agent running next to the UI.
type Client struct {
	cfg      config.Config
	logger   *slog.Logger
	queue    *localstore.Queue
	cache    *localstore.BadgerCache
	api      *httpclient.Client
	service  *client.Service
	surfaces *surface.Registry
}

// NewClient opens the local stores under the data dir and wires the client facade.
func NewClient(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Client, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	cc := cfg.Client
	if err := os.MkdirAll(cc.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	queueStore, err := localstore.OpenQueue(ctx, cc.QueuePath())
	if err != nil {
		return nil, err
	}
	cacheStore, err := localstore.OpenBadgerCache(cc.CacheDir(), baseLogger.With("component", "badger"))
	if err != nil {
		_ = queueStore.Close()
		return nil, err
	}

	api := httpclient.New(httpclient.Config{
		BaseURL:    cc.ServerURL,
		Timeout:    cc.FetchTimeout,
		MaxRetries: cc.MaxRetries,
	}, baseLogger.With("component", "httpclient"))

	queue := client.NewQueue(client.QueueDeps{
		Store:         queueStore,
		Submitter:     api,
		Cap:           cc.QueueCap,
		MaxAttempts:   cc.MaxAttempts,
		FlushInterval: cc.FlushInterval,
		Logger:        baseLogger.With("component", "queue"),
	})
	cache := client.NewCache(cacheStore, baseLogger.With("component", "cache"), nil)
	syncer := client.NewSyncer(api, cache, cc.FetchTimeout, baseLogger.With("component", "sync"))

	return &Client{
		cfg:      cfg,
		logger:   baseLogger,
		queue:    queueStore,
		cache:    cacheStore,
		api:      api,
		surfaces: surface.Default(),
		service: client.NewService(client.ServiceDeps{
			Queue:         queue,
			Cache:         cache,
			Syncer:        syncer,
			Store:         queueStore,
			Querier:       api,
			QueryTimeout:  cc.QueryTimeout,
			SyncInterval:  cc.SyncInterval,
			PruneInterval: cc.PruneInterval,
			PruneWindow:   time.Duration(cc.PruneWindowHours) * time.Hour,
			Logger:        baseLogger.With("component", "client"),
		}),
	}, nil
}

// Service exposes the UI-facing facade.
func (c *Client) Service() *client.Service { return c.service }

// Resolve turns a page URL or item id into an item reference.
func (c *Client) Resolve(raw, collectionID string) (surface.ItemRef, error) {
	return c.surfaces.Identify(raw, collectionID)
}

// Register announces this installation to the server ahead of its first report.
func (c *Client) Register(ctx context.Context) error {
	id, err := c.service.ReporterID(ctx)
	if err != nil {
		return err
	}
	_, err = c.api.Register(ctx, id)
	return err
}

// Run drives the background loops until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Register(ctx); err != nil {
		c.logger.Warn("registration deferred", "err", err)
	}
	c.logger.Info("client agent running", "server", c.cfg.Client.ServerURL, "dataDir", c.cfg.Client.DataDir)
	return c.service.Run(ctx)
}

// Close releases the local stores. Queued entries stay on disk for the next run.
func (c *Client) Close() error {
	return errors.Join(c.cache.Close(), c.queue.Close())
}
