package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SlopConsensus/internal/consensus"
	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

// ErrRecalculationRunning is returned when a recalculation is requested while one is in flight.
var ErrRecalculationRunning = errors.New("community recalculation already running")

// BootstrapDeps wires the bootstrap controller.
type BootstrapDeps struct {
	Reporters ports.ReporterStore
	Community ports.CommunityStore
	Trust     consensus.TrustParams
	Params    consensus.CommunityParams
	Tiers     []consensus.CohortTier
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Bootstrap owns reporter registration and the community-wide threshold.
type Bootstrap struct {
	reporters ports.ReporterStore
	community ports.CommunityStore
	trust     consensus.TrustParams
	params    consensus.CommunityParams
	tiers     []consensus.CohortTier
	logger    *slog.Logger
	now       func() time.Time
	running   sync.Mutex
}

// NewBootstrap constructs the controller.
func NewBootstrap(deps BootstrapDeps) *Bootstrap {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	tiers := deps.Tiers
	if tiers == nil {
		tiers = consensus.DefaultCohortTiers()
	}
	return &Bootstrap{
		reporters: deps.Reporters,
		community: deps.Community,
		trust:     deps.Trust,
		params:    deps.Params,
		tiers:     tiers,
		logger:    logger,
		now:       now,
	}
}

// Register returns the reporter, creating it with the next cohort rank on first sight.
func (b *Bootstrap) Register(ctx context.Context, reporterID string) (domain.Reporter, error) {
	reporter, created, err := b.reporters.RegisterReporter(ctx, reporterID, b.now(), func(rank int64) float64 {
		return consensus.CohortBonus(rank, b.tiers)
	})
	if err != nil {
		return domain.Reporter{}, fmt.Errorf("register reporter: %w", err)
	}
	if created {
		b.logger.Info("reporter registered", "reporter", reporterID, "rank", reporter.CohortRank, "bonus", reporter.CohortBonus)
	}
	return reporter, nil
}

// Current returns the stored community state, or the cold-start state before the first run.
func (b *Bootstrap) Current(ctx context.Context) (domain.CommunityState, error) {
	st, err := b.community.LoadCommunityState(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return b.params.ColdStartState(b.now()), nil
	}
	if err != nil {
		return domain.CommunityState{}, fmt.Errorf("load community state: %w", err)
	}
	return st, nil
}

// Recalculate refreshes every reporter's cached trust and the community threshold.
// Concurrent calls do not queue up: all but the first get ErrRecalculationRunning.
func (b *Bootstrap) Recalculate(ctx context.Context) (domain.CommunityState, error) {
	if !b.running.TryLock() {
		return domain.CommunityState{}, ErrRecalculationRunning
	}
	defer b.running.Unlock()

	now := b.now()
	reporters, err := b.reporters.ListReporters(ctx)
	if err != nil {
		return domain.CommunityState{}, fmt.Errorf("list reporters: %w", err)
	}

	population := make([]consensus.ReporterTrust, 0, len(reporters))
	scores := make(map[string]float64, len(reporters))
	for i := range reporters {
		trust := consensus.ComputeTrust(&reporters[i], now, b.trust)
		population = append(population, consensus.ReporterTrust{Reporter: reporters[i], Trust: trust})
		scores[reporters[i].ID] = trust
	}

	if err := b.reporters.SaveTrustScores(ctx, scores); err != nil {
		return domain.CommunityState{}, fmt.Errorf("save trust scores: %w", err)
	}

	st := consensus.CalculateCommunity(population, now, b.params)
	if err := b.community.SaveCommunityState(ctx, st); err != nil {
		return domain.CommunityState{}, fmt.Errorf("save community state: %w", err)
	}

	metrics.DynamicThreshold.Set(st.DynamicThreshold)
	metrics.AverageTrust.Set(st.AverageTrust)
	metrics.ActiveReporters.Set(float64(st.ActiveReporters))
	b.logger.Info("community recalculated",
		"reporters", st.TotalReporters,
		"active", st.ActiveReporters,
		"avg_trust", st.AverageTrust,
		"threshold", st.DynamicThreshold,
	)
	return st, nil
}

// TrustProfile is the reporter's current trust view computed from stored history.
func (b *Bootstrap) TrustProfile(ctx context.Context, reporterID string) (domain.TrustProfile, error) {
	reporter, err := b.reporters.GetReporter(ctx, reporterID)
	if err != nil {
		return domain.TrustProfile{}, err
	}
	return consensus.Profile(reporter, b.now(), b.trust), nil
}

// Weight is the trust a new report from reporter carries right now.
func (b *Bootstrap) Weight(reporter domain.Reporter) float64 {
	return consensus.ComputeTrust(&reporter, b.now(), b.trust)
}
