// Package consensus holds the pure scoring rules: reporter trust, cohort bonuses,
// the community-driven dynamic threshold and per-item aggregate recomputation.
package consensus

import (
	"time"

	"SlopConsensus/internal/domain"
)

// TrustParams tunes ComputeTrust.
type TrustParams struct {
	// TimeFloor is the time factor of a brand-new reporter and the lower clamp of any unflagged score.
	TimeFloor float64
	// RampDays is the age at which the time factor reaches 1.0.
	RampDays float64
	// NeutralAccuracy is used while a reporter has no judged reports.
	NeutralAccuracy float64
	// MinJudged is the evidence needed before accuracy gets the mature blend weight.
	MinJudged int64
	// LowEvidenceTimeWeight is the time share of the blend below MinJudged.
	LowEvidenceTimeWeight float64
	// MatureTimeWeight is the time share of the blend at or above MinJudged.
	MatureTimeWeight float64
	// AbsoluteFloor is returned for flagged reporters.
	AbsoluteFloor float64
	Ceiling       float64
}

// DefaultTrustParams returns production values.
func DefaultTrustParams() TrustParams {
	return TrustParams{
		TimeFloor:             0.30,
		RampDays:              30,
		NeutralAccuracy:       0.50,
		MinJudged:             5,
		LowEvidenceTimeWeight: 0.80,
		MatureTimeWeight:      0.50,
		AbsoluteFloor:         0.00,
		Ceiling:               1.00,
	}
}

// TimeFactor ramps linearly from TimeFloor at day 0 to 1.0 at RampDays.
func (p TrustParams) TimeFactor(ageDays float64) float64 {
	if ageDays <= 0 {
		return p.TimeFloor
	}
	if p.RampDays <= 0 || ageDays >= p.RampDays {
		return 1.0
	}
	return p.TimeFloor + (1.0-p.TimeFloor)*(ageDays/p.RampDays)
}

// AccuracyFactor is accurate/(accurate+inaccurate), or NeutralAccuracy without evidence.
func (p TrustParams) AccuracyFactor(accurate, inaccurate int64) float64 {
	judged := accurate + inaccurate
	if judged <= 0 {
		return p.NeutralAccuracy
	}
	return float64(accurate) / float64(judged)
}

// ComputeTrust maps a reporter's history to a weight. It never fails: a nil reporter gets the floor.
func ComputeTrust(r *domain.Reporter, now time.Time, p TrustParams) float64 {
	if r == nil {
		return p.TimeFloor
	}
	if r.Flagged {
		return p.AbsoluteFloor
	}

	timeFactor := p.TimeFactor(r.AgeDays(now))
	judged := r.JudgedCount()

	var base float64
	switch {
	case judged == 0:
		// No verdicts yet: the neutral accuracy would only blur the ramp.
		base = timeFactor
	case judged < p.MinJudged:
		base = p.LowEvidenceTimeWeight*timeFactor +
			(1-p.LowEvidenceTimeWeight)*p.AccuracyFactor(r.AccurateCount, r.InaccurateCount)
	default:
		base = p.MatureTimeWeight*timeFactor +
			(1-p.MatureTimeWeight)*p.AccuracyFactor(r.AccurateCount, r.InaccurateCount)
	}

	return clamp(base+r.CohortBonus, p.TimeFloor, p.Ceiling)
}

// Profile builds the reporter-facing trust summary.
func Profile(r domain.Reporter, now time.Time, p TrustParams) domain.TrustProfile {
	return domain.TrustProfile{
		ReporterID:      r.ID,
		TrustScore:      ComputeTrust(&r, now, p),
		AccuracyRate:    p.AccuracyFactor(r.AccurateCount, r.InaccurateCount),
		CohortRank:      r.CohortRank,
		CohortBonus:     r.CohortBonus,
		AccurateCount:   r.AccurateCount,
		InaccurateCount: r.InaccurateCount,
		PendingCount:    r.PendingCount,
		AgeDays:         r.AgeDays(now),
		Flagged:         r.Flagged,
		FirstSeen:       r.FirstSeen,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
