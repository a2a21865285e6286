package consensus

import (
	"time"

	"SlopConsensus/internal/domain"
)

// CommunityParams tunes the cold-start controller.
type CommunityParams struct {
	ActiveWindow    time.Duration
	TargetTrust     float64
	MaturityFloor   float64
	MaturityCeiling float64
	BaseThreshold   float64
	// DefaultAvgTrust stands in when there are no reporters at all.
	DefaultAvgTrust float64
}

// DefaultCommunityParams returns production values.
func DefaultCommunityParams() CommunityParams {
	return CommunityParams{
		ActiveWindow:    30 * 24 * time.Hour,
		TargetTrust:     0.75,
		MaturityFloor:   0.40,
		MaturityCeiling: 1.00,
		BaseThreshold:   2.5,
		DefaultAvgTrust: 0.30,
	}
}

// MaturityFactor is avgTrust/TargetTrust clamped to [MaturityFloor, MaturityCeiling].
func (p CommunityParams) MaturityFactor(avgTrust float64) float64 {
	if p.TargetTrust <= 0 {
		return p.MaturityCeiling
	}
	return clamp(avgTrust/p.TargetTrust, p.MaturityFloor, p.MaturityCeiling)
}

// DynamicThreshold is BaseThreshold scaled by the maturity factor.
func (p CommunityParams) DynamicThreshold(avgTrust float64) float64 {
	return p.BaseThreshold * p.MaturityFactor(avgTrust)
}

// ColdStartState is the community state before any recalculation has run.
func (p CommunityParams) ColdStartState(now time.Time) domain.CommunityState {
	return domain.CommunityState{
		AverageTrust:     p.DefaultAvgTrust,
		MaturityFactor:   p.MaturityFactor(p.DefaultAvgTrust),
		DynamicThreshold: p.DynamicThreshold(p.DefaultAvgTrust),
		RecalculatedAt:   now,
	}
}

// ReporterTrust pairs a reporter with its freshly computed trust.
type ReporterTrust struct {
	Reporter domain.Reporter
	Trust    float64
}

// CalculateCommunity derives the community state from the reporter population.
// Averages prefer active reporters, fall back to everyone, then to DefaultAvgTrust.
func CalculateCommunity(population []ReporterTrust, now time.Time, p CommunityParams) domain.CommunityState {
	var (
		activeSum, allSum float64
		active            int64
	)
	cutoff := now.Add(-p.ActiveWindow)
	for _, rt := range population {
		allSum += rt.Trust
		if !rt.Reporter.LastActive.Before(cutoff) {
			activeSum += rt.Trust
			active++
		}
	}

	avg := p.DefaultAvgTrust
	switch {
	case active > 0:
		avg = activeSum / float64(active)
	case len(population) > 0:
		avg = allSum / float64(len(population))
	}

	return domain.CommunityState{
		TotalReporters:   int64(len(population)),
		ActiveReporters:  active,
		AverageTrust:     avg,
		MaturityFactor:   p.MaturityFactor(avg),
		DynamicThreshold: p.DynamicThreshold(avg),
		RecalculatedAt:   now,
	}
}
