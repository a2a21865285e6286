package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

const (
	defaultEvaluationDelay = 30 * 24 * time.Hour
	defaultEvaluationBatch = 500
)

// EvaluatorStore is what the accuracy evaluation reads and writes.
type EvaluatorStore interface {
	ports.ReportStore
	GetAggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error)
}

// EvaluatorDeps wires the accuracy evaluator.
type EvaluatorDeps struct {
	Store     EvaluatorStore
	Delay     time.Duration
	BatchSize int
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Evaluator judges reports once they are old enough: a report is accurate when its item
// reached consensus within the evaluation delay, inaccurate otherwise.
type Evaluator struct {
	store     EvaluatorStore
	delay     time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// EvaluationResult counts the verdicts of one run.
type EvaluationResult struct {
	Accurate   int
	Inaccurate int
}

// NewEvaluator constructs the evaluator.
func NewEvaluator(deps EvaluatorDeps) *Evaluator {
	e := &Evaluator{
		store:     deps.Store,
		delay:     deps.Delay,
		batchSize: deps.BatchSize,
		logger:    deps.Logger,
		now:       deps.Clock,
	}
	if e.delay <= 0 {
		e.delay = defaultEvaluationDelay
	}
	if e.batchSize <= 0 {
		e.batchSize = defaultEvaluationBatch
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Run judges every pending report created before now minus the evaluation delay.
func (e *Evaluator) Run(ctx context.Context) (EvaluationResult, error) {
	now := e.now()
	cutoff := now.Add(-e.delay)
	aggregates := map[string]*domain.ItemAggregate{}

	var res EvaluationResult
	for {
		pending, err := e.store.PendingJudgments(ctx, cutoff, e.batchSize)
		if err != nil {
			return res, fmt.Errorf("load pending judgments: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		progressed := false
		for _, rep := range pending {
			agg, ok := aggregates[rep.ItemID]
			if !ok {
				agg, err = e.aggregateFor(ctx, rep.ItemID)
				if err != nil {
					return res, err
				}
				aggregates[rep.ItemID] = agg
			}
			verdict := e.verdict(rep, agg)

			judged, err := e.store.JudgeReport(ctx, rep.ItemID, rep.ReporterID, verdict, now)
			if err != nil {
				return res, fmt.Errorf("judge %s/%s: %w", rep.ItemID, rep.ReporterID, err)
			}
			if !judged {
				continue
			}
			progressed = true
			metrics.Judgments.WithLabelValues(string(verdict)).Inc()
			if verdict == domain.JudgmentAccurate {
				res.Accurate++
			} else {
				res.Inaccurate++
			}
		}

		if !progressed || len(pending) < e.batchSize {
			break
		}
	}

	e.logger.Info("accuracy evaluation finished", "accurate", res.Accurate, "inaccurate", res.Inaccurate)
	return res, nil
}

// aggregateFor returns nil for items that never got an aggregate.
func (e *Evaluator) aggregateFor(ctx context.Context, itemID string) (*domain.ItemAggregate, error) {
	agg, err := e.store.GetAggregate(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load aggregate %s: %w", itemID, err)
	}
	return &agg, nil
}

// verdict is accurate when the item first crossed the threshold no later than the end of
// the report's evaluation delay.
func (e *Evaluator) verdict(rep domain.Report, agg *domain.ItemAggregate) domain.Judgment {
	if agg == nil || agg.FirstMarkedAt.IsZero() {
		return domain.JudgmentInaccurate
	}
	if agg.FirstMarkedAt.After(rep.CreatedAt.Add(e.delay)) {
		return domain.JudgmentInaccurate
	}
	return domain.JudgmentAccurate
}
