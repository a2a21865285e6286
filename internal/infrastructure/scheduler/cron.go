package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SlopConsensus/internal/ports"
	"SlopConsensus/pkg/logger"
)

// CronScheduler runs named jobs on cron specs. A job that is still running when its next
// tick arrives skips that tick; a panicking job is logged and recovered.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating specs in loc (UTC when nil).
// Specs use the standard five fields plus descriptors such as "@every 30m".
func NewCronScheduler(loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	cl := logger.NewKV(log)
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  log,
		ctx:     context.Background(),
		entries: map[string]cron.EntryID{},
	}
}

// Register adds a job; registering a name twice replaces the earlier job.
func (c *CronScheduler) Register(name, spec string, job ports.Job) error {
	if job == nil {
		return fmt.Errorf("job %s: nil handler", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.cron.AddFunc(spec, func() {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		job(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("job %s: parse %q: %w", name, spec, err)
	}
	if prev, ok := c.entries[name]; ok {
		c.cron.Remove(prev)
	}
	c.entries[name] = id
	c.logger.Info("job registered", "job", name, "spec", spec)
	return nil
}

// Start begins dispatching. Jobs receive a context cancelled by Stop or by ctx.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.cron.Start()
	return nil
}

// Stop halts dispatching and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}

	done := c.cron.Stop()
	cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Jobs lists registered job names with their next activation.
func (c *CronScheduler) Jobs() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.entries))
	for name, id := range c.entries {
		out[name] = c.cron.Entry(id).Next
	}
	return out
}
