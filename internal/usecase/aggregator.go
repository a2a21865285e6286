package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"SlopConsensus/internal/consensus"
	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

const defaultSweepParallelism = 8

// AggregatorDeps wires the aggregator.
type AggregatorDeps struct {
	Store  ports.AggregateStore
	Logger *slog.Logger
	Clock  func() time.Time
	// Strict turns invalid report weights into errors instead of skipping them.
	Strict           bool
	SweepParallelism int
}

// Aggregator keeps item aggregates in line with their reports. Recomputes of one item never overlap.
type Aggregator struct {
	store       ports.AggregateStore
	logger      *slog.Logger
	now         func() time.Time
	strict      bool
	parallelism int
	locks       *keyedMutex
}

// NewAggregator constructs the aggregator.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	parallelism := deps.SweepParallelism
	if parallelism <= 0 {
		parallelism = defaultSweepParallelism
	}
	return &Aggregator{
		store:       deps.Store,
		logger:      logger,
		now:         now,
		strict:      deps.Strict,
		parallelism: parallelism,
		locks:       newKeyedMutex(),
	}
}

// Recompute rebuilds one item's aggregate from its active reports against threshold.
func (a *Aggregator) Recompute(ctx context.Context, itemID string, threshold float64) (domain.ItemAggregate, error) {
	unlock := a.locks.Lock(itemID)
	defer unlock()

	now := a.now()
	var skipped int
	agg, err := a.store.UpdateAggregate(ctx, itemID, func(current domain.ItemAggregate, reports []domain.Report) (domain.ItemAggregate, error) {
		res, err := consensus.Recompute(current, reports, threshold, now, a.strict)
		if err != nil {
			return domain.ItemAggregate{}, err
		}
		skipped = res.Skipped
		return res.Aggregate, nil
	})
	if err != nil {
		metrics.AggregateRecomputes.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrInvalidWeight) {
			a.logger.Error("invalid report weight", "item", itemID, "err", err)
		}
		return domain.ItemAggregate{}, fmt.Errorf("recompute %s: %w", itemID, err)
	}

	if skipped > 0 {
		metrics.SkippedReports.Add(float64(skipped))
		a.logger.Warn("reports skipped during recompute", "item", itemID, "skipped", skipped)
	}
	metrics.AggregateRecomputes.WithLabelValues("ok").Inc()
	return agg, nil
}

// SweepResult summarizes a full recompute pass.
type SweepResult struct {
	Items  int
	Failed int
}

// Sweep recomputes every known item against threshold. Individual failures are logged and
// counted; the sweep keeps going and reports an error at the end.
func (a *Aggregator) Sweep(ctx context.Context, threshold float64) (SweepResult, error) {
	ids, err := a.store.ListAggregateIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list aggregates: %w", err)
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(a.parallelism)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := a.Recompute(ctx, id, threshold); err != nil {
				failed.Add(1)
				a.logger.Warn("sweep recompute failed", "item", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Items: len(ids), Failed: int(failed.Load())}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, fmt.Errorf("sweep: %d of %d items failed", res.Failed, res.Items)
	}
	return res, nil
}
