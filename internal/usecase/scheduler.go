package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

// Job names used for registration, logs and metrics.
const (
	JobCommunity  = "community"
	JobEvaluation = "evaluation"
	JobSnapshot   = "snapshot"
	JobDelta      = "delta"
)

// Schedules holds the cron specs of the periodic server jobs. Empty specs disable a job.
type Schedules struct {
	Community  string
	Evaluation string
	Snapshot   string
	Delta      string
}

// SchedulerDeps wires the periodic jobs to a driver.
type SchedulerDeps struct {
	Driver     ports.Scheduler
	Bootstrap  *Bootstrap
	Aggregator *Aggregator
	Evaluator  *Evaluator
	Publisher  *Publisher
	Schedules  Schedules
	Logger     *slog.Logger
}

// Scheduler wires the cron-like driver with the server use cases.
type Scheduler struct {
	driver     ports.Scheduler
	bootstrap  *Bootstrap
	aggregator *Aggregator
	evaluator  *Evaluator
	publisher  *Publisher
	schedules  Schedules
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:     deps.Driver,
		bootstrap:  deps.Bootstrap,
		aggregator: deps.Aggregator,
		evaluator:  deps.Evaluator,
		publisher:  deps.Publisher,
		schedules:  deps.Schedules,
		logger:     logger,
	}
}

// Start registers every configured job and starts the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{JobCommunity, s.schedules.Community, s.RunCommunity},
		{JobEvaluation, s.schedules.Evaluation, s.RunEvaluation},
		{JobSnapshot, s.schedules.Snapshot, s.RunSnapshot},
		{JobDelta, s.schedules.Delta, s.RunDelta},
	}
	for _, job := range jobs {
		if job.spec == "" {
			s.logger.Info("job disabled", "job", job.name)
			continue
		}
		if err := s.driver.Register(job.name, job.spec, s.instrument(job.name, job.run)); err != nil {
			return fmt.Errorf("register %s: %w", job.name, err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// RunCommunity recalculates the threshold and re-evaluates every item against it.
func (s *Scheduler) RunCommunity(ctx context.Context) error {
	state, err := s.bootstrap.Recalculate(ctx)
	if errors.Is(err, ErrRecalculationRunning) {
		s.logger.Info("community recalculation skipped, previous run still active")
		return nil
	}
	if err != nil {
		return err
	}
	res, err := s.aggregator.Sweep(ctx, state.DynamicThreshold)
	s.logger.Info("threshold sweep finished", "items", res.Items, "failed", res.Failed)
	return err
}

// RunEvaluation judges reports that reached the evaluation delay.
func (s *Scheduler) RunEvaluation(ctx context.Context) error {
	_, err := s.evaluator.Run(ctx)
	return err
}

// RunSnapshot publishes a fresh snapshot.
func (s *Scheduler) RunSnapshot(ctx context.Context) error {
	_, err := s.publisher.GenerateSnapshot(ctx)
	return err
}

// RunDelta publishes the delta since the latest snapshot.
func (s *Scheduler) RunDelta(ctx context.Context) error {
	_, err := s.publisher.PublishDelta(ctx)
	return err
}

func (s *Scheduler) instrument(name string, run func(ctx context.Context) error) ports.Job {
	return func(ctx context.Context, trigger time.Time) {
		started := time.Now()
		err := run(ctx)
		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
			s.logger.Error("job failed", "job", name, "trigger", trigger, "err", err)
			return
		}
		metrics.JobRuns.WithLabelValues(name, "ok").Inc()
		s.logger.Debug("job finished", "job", name, "trigger", trigger)
	}
}
