package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

// IngestionDeps wires the server-side batch handler.
type IngestionDeps struct {
	Store      ports.Datastore
	Bootstrap  *Bootstrap
	Aggregator *Aggregator
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Ingestion applies client batches to the report set and keeps aggregates current.
type Ingestion struct {
	store      ports.Datastore
	bootstrap  *Bootstrap
	aggregator *Aggregator
	logger     *slog.Logger
	now        func() time.Time
}

// NewIngestion constructs the ingestion use case.
func NewIngestion(deps IngestionDeps) *Ingestion {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Ingestion{
		store:      deps.Store,
		bootstrap:  deps.Bootstrap,
		aggregator: deps.Aggregator,
		logger:     logger,
		now:        now,
	}
}

// SubmitBatch processes entries in order and returns one result per entry.
// A failing entry does not stop the rest of the batch.
func (s *Ingestion) SubmitBatch(ctx context.Context, entries []domain.BatchEntry) ([]domain.EntryResult, error) {
	state, err := s.bootstrap.Current(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.EntryResult, len(entries))
	for i, entry := range entries {
		var res domain.EntryResult
		switch entry.Op {
		case domain.OpReport:
			res = s.submitReport(ctx, entry, state.DynamicThreshold)
		case domain.OpRemove:
			res = s.submitRemoval(ctx, entry, state.DynamicThreshold)
		default:
			res = domain.EntryResult{Status: domain.StatusRejected, Error: fmt.Sprintf("unknown op %q", entry.Op)}
		}
		res.Index = i
		res.ItemID = entry.ItemID
		if res.Status == domain.StatusError {
			s.logger.Warn("batch entry failed", "op", entry.Op, "item", entry.ItemID, "reporter", entry.ReporterID, "err", res.Error)
		}
		metrics.BatchEntries.WithLabelValues(string(entry.Op), string(res.Status)).Inc()
		results[i] = res
	}
	return results, nil
}

func (s *Ingestion) submitReport(ctx context.Context, entry domain.BatchEntry, threshold float64) domain.EntryResult {
	reporter, err := s.bootstrap.Register(ctx, entry.ReporterID)
	if err != nil {
		return failed(err)
	}

	now := s.now()
	outcome, err := s.store.UpsertReport(ctx, domain.Report{
		ItemID:       entry.ItemID,
		CollectionID: entry.CollectionID,
		ReporterID:   entry.ReporterID,
		TrustWeight:  s.bootstrap.Weight(reporter),
		Judgment:     domain.JudgmentPending,
		CreatedAt:    now,
	})
	if err != nil {
		return failed(err)
	}
	if err := s.store.TouchReporter(ctx, entry.ReporterID, now); err != nil {
		s.logger.Warn("touch reporter", "reporter", entry.ReporterID, "err", err)
	}

	status := domain.StatusAccepted
	switch outcome {
	case domain.UpsertWithdrawn:
		return domain.EntryResult{Status: domain.StatusRejected, Error: "report was withdrawn earlier"}
	case domain.UpsertDuplicate:
		status = domain.StatusDuplicate
	}

	// A duplicate is usually a retry whose first recompute may not have landed.
	if _, err := s.aggregator.Recompute(ctx, entry.ItemID, threshold); err != nil {
		return failed(err)
	}
	return domain.EntryResult{Status: status}
}

func (s *Ingestion) submitRemoval(ctx context.Context, entry domain.BatchEntry, threshold float64) domain.EntryResult {
	outcome, err := s.store.RemoveReport(ctx, entry.ItemID, entry.ReporterID, s.now())
	if err != nil {
		return failed(err)
	}
	if outcome == domain.RemoveNotFound {
		return domain.EntryResult{Status: domain.StatusNotFound}
	}
	if _, err := s.aggregator.Recompute(ctx, entry.ItemID, threshold); err != nil {
		return failed(err)
	}
	return domain.EntryResult{Status: domain.StatusAccepted}
}

// Register makes sure the reporter exists and returns its trust profile.
func (s *Ingestion) Register(ctx context.Context, reporterID string) (domain.TrustProfile, error) {
	if _, err := s.bootstrap.Register(ctx, reporterID); err != nil {
		return domain.TrustProfile{}, err
	}
	return s.bootstrap.TrustProfile(ctx, reporterID)
}

// TrustProfile returns the stored reporter's trust view or domain.ErrNotFound.
func (s *Ingestion) TrustProfile(ctx context.Context, reporterID string) (domain.TrustProfile, error) {
	return s.bootstrap.TrustProfile(ctx, reporterID)
}

// Aggregate returns the current consensus for an item or domain.ErrNotFound.
func (s *Ingestion) Aggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error) {
	return s.store.GetAggregate(ctx, itemID)
}

// FlagReporter drops a reporter to the absolute trust floor. Existing reports keep their weight.
func (s *Ingestion) FlagReporter(ctx context.Context, reporterID, reason string) error {
	if err := s.store.FlagReporter(ctx, reporterID, reason); err != nil {
		return fmt.Errorf("flag reporter: %w", err)
	}
	s.logger.Warn("reporter flagged", "reporter", reporterID, "reason", reason)
	return nil
}

func failed(err error) domain.EntryResult {
	return domain.EntryResult{Status: domain.StatusError, Error: err.Error()}
}
