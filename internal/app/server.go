// Package app wires configuration to use cases and lifecycle orchestration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"SlopConsensus/internal/config"
	"SlopConsensus/internal/consensus"
	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/infrastructure/blob"
	"SlopConsensus/internal/infrastructure/httpapi"
	"SlopConsensus/internal/infrastructure/scheduler"
	"SlopConsensus/internal/infrastructure/storage"
	"SlopConsensus/internal/logging"
	"SlopConsensus/internal/ports"
	"SlopConsensus/internal/supervisor"
	"SlopConsensus/internal/usecase"
)

// Server is the authoritative aggregator process.
type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	blobs     ports.BlobStore
	closers   []io.Closer
	ingestion *usecase.Ingestion
	publisher *usecase.Publisher
	scheduler *usecase.Scheduler
	handler   http.Handler
}

// NewServer opens storage, migrates it and builds every server component.
func NewServer(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Server, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	dialect, err := storage.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewSQLStore(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Server{cfg: cfg, logger: baseLogger, db: db}
	s.blobs, err = s.openBlobs(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	trust, community := consensusParams(cfg.Consensus)
	bootstrap := usecase.NewBootstrap(usecase.BootstrapDeps{
		Reporters: store,
		Community: store,
		Trust:     trust,
		Params:    community,
		Tiers:     consensus.DefaultCohortTiers(),
		Logger:    baseLogger.With("component", "bootstrap"),
	})
	aggregator := usecase.NewAggregator(usecase.AggregatorDeps{
		Store:            store,
		Logger:           baseLogger.With("component", "aggregator"),
		Strict:           cfg.Consensus.Strict,
		SweepParallelism: cfg.Consensus.SweepParallelism,
	})
	evaluator := usecase.NewEvaluator(usecase.EvaluatorDeps{
		Store:  store,
		Delay:  time.Duration(cfg.Consensus.EvaluationDelayDays) * 24 * time.Hour,
		Logger: baseLogger.With("component", "evaluation"),
	})
	s.publisher = usecase.NewPublisher(usecase.PublisherDeps{
		Store:  store,
		Blobs:  s.blobs,
		Window: cfg.Publisher.Window(),
		Logger: baseLogger.With("component", "publisher"),
	})
	s.ingestion = usecase.NewIngestion(usecase.IngestionDeps{
		Store:      store,
		Bootstrap:  bootstrap,
		Aggregator: aggregator,
		Logger:     baseLogger.With("component", "ingestion"),
	})
	s.scheduler = usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:     scheduler.NewCronScheduler(cfg.Scheduler.Location(), baseLogger.With("component", "cron")),
		Bootstrap:  bootstrap,
		Aggregator: aggregator,
		Evaluator:  evaluator,
		Publisher:  s.publisher,
		Schedules: usecase.Schedules{
			Community:  cfg.Scheduler.Community,
			Evaluation: cfg.Scheduler.Evaluation,
			Snapshot:   cfg.Scheduler.Snapshot,
			Delta:      cfg.Scheduler.Delta,
		},
		Logger: baseLogger.With("component", "scheduler"),
	})
	s.handler = httpapi.NewHandler(s.ingestion, s.blobs, httpapi.Config{
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		MaxBatchSize:      cfg.HTTP.MaxBatchSize,
	}, baseLogger.With("component", "http")).Routes()

	return s, nil
}

func (s *Server) openBlobs(ctx context.Context) (ports.BlobStore, error) {
	b := s.cfg.Blob
	switch b.Backend {
	case "s3":
		return blob.NewS3(blob.S3Config{
			Bucket:    b.Bucket,
			Prefix:    b.Prefix,
			Region:    b.Region,
			Endpoint:  b.Endpoint,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
		})
	case "gcs":
		g, err := blob.NewGCS(ctx, b.Bucket, b.Prefix, b.CredentialsFile)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, g)
		return g, nil
	default:
		return blob.NewFS(b.Dir)
	}
}

// Handler exposes the HTTP routes.
func (s *Server) Handler() http.Handler { return s.handler }

// Run publishes an initial snapshot when none exists, then supervises the HTTP API and
// the job scheduler until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.ensureSnapshot(ctx); err != nil {
		s.logger.Warn("initial snapshot failed", "err", err)
	}

	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := supervisor.New("slopserver", s.logger.With("component", "supervisor"), supervisor.Config{
		ShutdownTimeout: s.cfg.HTTP.ShutdownTimeout,
	})
	sup.Add(supervisor.NewHTTPService(srv, s.cfg.HTTP.ShutdownTimeout))
	sup.Add(supervisor.NewLifecycleService("scheduler", s.scheduler, 0))

	s.logger.Info("server starting", "addr", s.cfg.HTTP.Addr, "blobs", s.cfg.Blob.Backend)
	err := sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunJob executes one scheduled job immediately.
func (s *Server) RunJob(ctx context.Context, name string) error {
	switch name {
	case usecase.JobCommunity:
		return s.scheduler.RunCommunity(ctx)
	case usecase.JobEvaluation:
		return s.scheduler.RunEvaluation(ctx)
	case usecase.JobSnapshot:
		return s.scheduler.RunSnapshot(ctx)
	case usecase.JobDelta:
		return s.scheduler.RunDelta(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// FlagReporter zeroes a reporter's trust for abuse.
func (s *Server) FlagReporter(ctx context.Context, reporterID, reason string) error {
	return s.ingestion.FlagReporter(ctx, reporterID, reason)
}

func (s *Server) ensureSnapshot(ctx context.Context) error {
	_, err := s.blobs.Get(ctx, domain.SnapshotBlobName)
	if !errors.Is(err, domain.ErrBlobNotFound) {
		return err
	}
	_, err = s.publisher.GenerateSnapshot(ctx)
	return err
}

// Close releases storage handles.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// consensusParams applies configured overrides to the built-in parameters.
func consensusParams(c config.ConsensusConfig) (consensus.TrustParams, consensus.CommunityParams) {
	trust := consensus.DefaultTrustParams()
	if c.TimeFloor > 0 {
		trust.TimeFloor = c.TimeFloor
	}
	if c.RampDays > 0 {
		trust.RampDays = c.RampDays
	}
	if c.MinJudged > 0 {
		trust.MinJudged = c.MinJudged
	}

	community := consensus.DefaultCommunityParams()
	if c.BaseThreshold > 0 {
		community.BaseThreshold = c.BaseThreshold
	}
	if c.TargetTrust > 0 {
		community.TargetTrust = c.TargetTrust
	}
	if c.MaturityFloor > 0 {
		community.MaturityFloor = c.MaturityFloor
	}
	if c.ActiveWindowDays > 0 {
		community.ActiveWindow = time.Duration(c.ActiveWindowDays) * 24 * time.Hour
	}
	return trust, community
}
