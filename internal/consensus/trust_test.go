package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

var epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestTrustGrowsWithAge(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	r := &domain.Reporter{ID: "r", FirstSeen: epoch}

	day0 := ComputeTrust(r, epoch, p)
	day15 := ComputeTrust(r, epoch.Add(15*24*time.Hour), p)
	day30 := ComputeTrust(r, epoch.Add(30*24*time.Hour), p)
	day90 := ComputeTrust(r, epoch.Add(90*24*time.Hour), p)

	require.InDelta(t, 0.30, day0, 1e-9)
	require.InDelta(t, 0.65, day15, 1e-9)
	require.InDelta(t, 1.00, day30, 1e-9)
	require.GreaterOrEqual(t, day30, day0)
	require.Equal(t, day30, day90)
}

func TestFlaggedReporterDropsToAbsoluteFloor(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	states := []domain.Reporter{
		{FirstSeen: epoch, Flagged: true},
		{FirstSeen: epoch.Add(-365 * 24 * time.Hour), AccurateCount: 50, CohortBonus: 0.4, Flagged: true},
		{FirstSeen: epoch, InaccurateCount: 9, Flagged: true, FlaggedReason: "burst"},
	}
	for i := range states {
		require.Equal(t, p.AbsoluteFloor, ComputeTrust(&states[i], epoch, p))
	}
}

func TestUnknownReporterGetsFloor(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	require.Equal(t, p.TimeFloor, ComputeTrust(nil, epoch, p))
}

func TestCohortBonusIsAddedAndClamped(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	first := &domain.Reporter{FirstSeen: epoch, CohortRank: 1, CohortBonus: CohortBonus(1, DefaultCohortTiers())}
	require.InDelta(t, 0.70, ComputeTrust(first, epoch, p), 1e-9)

	veteran := *first
	veteran.FirstSeen = epoch.Add(-60 * 24 * time.Hour)
	require.Equal(t, 1.0, ComputeTrust(&veteran, epoch, p))
}

func TestAccuracyBlendShiftsWithEvidence(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	mature := epoch.Add(-40 * 24 * time.Hour)

	few := &domain.Reporter{FirstSeen: mature, InaccurateCount: 2}
	// 0.8*1.0 + 0.2*0.0
	require.InDelta(t, 0.80, ComputeTrust(few, epoch, p), 1e-9)

	many := &domain.Reporter{FirstSeen: mature, AccurateCount: 3, InaccurateCount: 3}
	// 0.5*1.0 + 0.5*0.5
	require.InDelta(t, 0.75, ComputeTrust(many, epoch, p), 1e-9)

	bad := &domain.Reporter{FirstSeen: epoch, InaccurateCount: 10}
	require.Equal(t, p.TimeFloor, ComputeTrust(bad, epoch, p))
}

func TestAccuracyFactorNeutralWithoutEvidence(t *testing.T) {
	t.Parallel()

	p := DefaultTrustParams()
	require.Equal(t, 0.5, p.AccuracyFactor(0, 0))
	require.Equal(t, 0.75, p.AccuracyFactor(3, 1))
}

func TestCohortBonusIsDecreasingInRank(t *testing.T) {
	t.Parallel()

	tiers := DefaultCohortTiers()
	prev := CohortBonus(1, tiers)
	for _, rank := range []int64{100, 101, 1_000, 1_001, 10_000, 10_001, 50_000, 50_001, 1_000_000} {
		b := CohortBonus(rank, tiers)
		require.LessOrEqual(t, b, prev, "rank %d", rank)
		prev = b
	}
	require.Equal(t, 0.0, CohortBonus(50_001, tiers))
	require.Equal(t, 0.0, CohortBonus(0, tiers))
}

func TestProfileReportsAccuracyRate(t *testing.T) {
	t.Parallel()

	r := domain.Reporter{ID: "r1", FirstSeen: epoch, AccurateCount: 1, InaccurateCount: 3, PendingCount: 2}
	profile := Profile(r, epoch.Add(24*time.Hour), DefaultTrustParams())
	require.Equal(t, "r1", profile.ReporterID)
	require.InDelta(t, 0.25, profile.AccuracyRate, 1e-9)
	require.InDelta(t, 1.0, profile.AgeDays, 1e-9)
	require.Equal(t, int64(2), profile.PendingCount)
}
