// Package client is the installation-side agent: a durable batching queue for outbound
// reports, a local materialized view of marked items, and the facade the UI talks to.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

const (
	defaultQueueCap      = 10
	defaultMaxAttempts   = 3
	defaultFlushInterval = 3 * time.Minute
)

// QueueDeps wires the batching queue.
type QueueDeps struct {
	Store     ports.QueueStore
	Submitter ports.BatchSubmitter
	// Cap is both the size that triggers a flush and the largest batch sent.
	Cap           int
	MaxAttempts   int
	FlushInterval time.Duration
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Queue batches report and removal operations and ships them to the server.
// At most one flush is in flight; nothing is sent while offline.
type Queue struct {
	store         ports.QueueStore
	submitter     ports.BatchSubmitter
	cap           int
	maxAttempts   int
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	online   atomic.Bool
	flushing atomic.Bool
}

// FlushResult summarizes one flush.
type FlushResult struct {
	// Skipped is set when another flush was already running.
	Skipped   bool
	Sent      int
	Settled   int
	Retrying  int
	GaveUp    int
	// Deferred counts entries kept queued untouched because the batch never reached the server.
	Deferred  int
	Remaining int
}

// NewQueue constructs a queue that starts out online.
func NewQueue(deps QueueDeps) *Queue {
	q := &Queue{
		store:         deps.Store,
		submitter:     deps.Submitter,
		cap:           deps.Cap,
		maxAttempts:   deps.MaxAttempts,
		flushInterval: deps.FlushInterval,
		logger:        deps.Logger,
		now:           deps.Clock,
	}
	if q.cap <= 0 {
		q.cap = defaultQueueCap
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = defaultMaxAttempts
	}
	if q.flushInterval <= 0 {
		q.flushInterval = defaultFlushInterval
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.now == nil {
		q.now = time.Now
	}
	q.online.Store(true)
	return q
}

// Enqueue stores an operation durably. A removal whose report is still queued cancels
// both locally; a report whose removal is still queued cancels the removal.
// Reaching the cap triggers a flush.
func (q *Queue) Enqueue(ctx context.Context, entry domain.BatchEntry) error {
	switch entry.Op {
	case domain.OpRemove:
		cancelled, err := q.cancel(ctx, domain.OpReport, entry)
		if err != nil || cancelled {
			if cancelled {
				err = q.store.SetLocalStatus(ctx, entry.ItemID, domain.LocalNone)
			}
			return err
		}
	case domain.OpReport:
		cancelled, err := q.cancel(ctx, domain.OpRemove, entry)
		if err != nil || cancelled {
			if cancelled {
				err = q.store.SetLocalStatus(ctx, entry.ItemID, domain.LocalConfirmed)
			}
			return err
		}
	default:
		return fmt.Errorf("enqueue: unknown op %q", entry.Op)
	}

	added, err := q.store.Append(ctx, ports.QueuedEntry{Entry: entry, EnqueuedAt: q.now()})
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if added && entry.Op == domain.OpReport {
		if err := q.store.SetLocalStatus(ctx, entry.ItemID, domain.LocalPending); err != nil {
			return err
		}
	}

	n, err := q.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("queue length: %w", err)
	}
	if n >= q.cap {
		if _, err := q.Flush(ctx); err != nil {
			q.logger.Warn("cap flush failed, entries stay queued", "err", err)
		}
	}
	return nil
}

func (q *Queue) cancel(ctx context.Context, op domain.BatchOp, entry domain.BatchEntry) (bool, error) {
	_, found, err := q.store.Find(ctx, op, entry.ItemID, entry.ReporterID)
	if err != nil || !found {
		return false, err
	}
	if err := q.store.Delete(ctx, op, entry.ItemID, entry.ReporterID); err != nil {
		return false, err
	}
	q.logger.Debug("queued operation cancelled locally", "op", op, "item", entry.ItemID)
	return true, nil
}

// SetOnline records connectivity. Coming back online flushes immediately.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	was := q.online.Swap(online)
	if online && !was {
		q.logger.Info("back online, flushing queue")
		if _, err := q.Flush(ctx); err != nil {
			q.logger.Warn("reconnect flush failed", "err", err)
		}
	}
}

// Online reports the last known connectivity.
func (q *Queue) Online() bool {
	return q.online.Load()
}

// Foreground is called when the host becomes active again.
func (q *Queue) Foreground(ctx context.Context) {
	if _, err := q.Flush(ctx); err != nil {
		q.logger.Warn("foreground flush failed", "err", err)
	}
}

// Run flushes on the timer until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := q.Flush(ctx); err != nil && !errors.Is(err, domain.ErrOffline) {
				q.logger.Warn("timed flush failed", "err", err)
			}
		}
	}
}

// Flush sends queued entries in batches of at most Cap. It returns domain.ErrOffline while
// offline and a Skipped result if another flush holds the slot.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	if !q.online.Load() {
		return FlushResult{}, domain.ErrOffline
	}
	if !q.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true}, nil
	}
	defer q.flushing.Store(false)

	var res FlushResult
	pending, err := q.store.Pending(ctx)
	if err != nil {
		return res, fmt.Errorf("load queue: %w", err)
	}

	var flushErr error
	for start := 0; start < len(pending); start += q.cap {
		end := min(start+q.cap, len(pending))
		if flushErr = q.flushBatch(ctx, pending[start:end], &res); flushErr != nil {
			break
		}
	}

	if n, err := q.store.Len(ctx); err == nil {
		res.Remaining = n
	}
	if res.Sent > 0 {
		q.logger.Info("queue flushed", "sent", res.Sent, "settled", res.Settled, "retrying", res.Retrying, "gave_up", res.GaveUp, "deferred", res.Deferred)
	}
	return res, flushErr
}

func (q *Queue) flushBatch(ctx context.Context, batch []ports.QueuedEntry, res *FlushResult) error {
	entries := make([]domain.BatchEntry, len(batch))
	for i, qe := range batch {
		entries[i] = qe.Entry
	}
	res.Sent += len(entries)

	results, err := q.submitter.SubmitBatch(ctx, entries)
	if err != nil {
		// An undelivered batch keeps its attempts; the queue stays offline until a sync succeeds.
		res.Deferred += len(batch)
		if ctx.Err() == nil {
			q.online.Store(false)
		}
		q.logger.Warn("batch not delivered, keeping entries queued", "entries", len(batch), "err", err)
		return fmt.Errorf("submit batch: %w", err)
	}

	byIndex := make(map[int]domain.EntryResult, len(results))
	for _, r := range results {
		byIndex[r.Index] = r
	}
	for i, qe := range batch {
		r, ok := byIndex[i]
		if !ok || !r.Settled() {
			if err := q.retryOrGiveUp(ctx, qe, res); err != nil {
				return err
			}
			continue
		}
		if err := q.settle(ctx, qe.Entry, r); err != nil {
			return err
		}
		res.Settled++
	}
	return nil
}

func (q *Queue) settle(ctx context.Context, e domain.BatchEntry, r domain.EntryResult) error {
	if err := q.store.Delete(ctx, e.Op, e.ItemID, e.ReporterID); err != nil {
		return err
	}

	status := domain.LocalNone
	if e.Op == domain.OpReport {
		switch r.Status {
		case domain.StatusAccepted, domain.StatusDuplicate:
			status = domain.LocalConfirmed
		default:
			status = domain.LocalFailed
		}
	}
	return q.store.SetLocalStatus(ctx, e.ItemID, status)
}

func (q *Queue) retryOrGiveUp(ctx context.Context, qe ports.QueuedEntry, res *FlushResult) error {
	e := qe.Entry
	attempts := qe.Attempts + 1
	if attempts < q.maxAttempts {
		res.Retrying++
		return q.store.SetAttempts(ctx, e.Op, e.ItemID, e.ReporterID, attempts)
	}

	res.GaveUp++
	q.logger.Warn("dropping queued operation after retries", "op", e.Op, "item", e.ItemID, "attempts", attempts)
	if err := q.store.Delete(ctx, e.Op, e.ItemID, e.ReporterID); err != nil {
		return err
	}
	if e.Op == domain.OpReport {
		return q.store.SetLocalStatus(ctx, e.ItemID, domain.LocalFailed)
	}
	return nil
}
