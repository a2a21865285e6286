package consensus

// CohortTier grants Bonus to every reporter whose registration rank is at most MaxRank.
type CohortTier struct {
	MaxRank int64
	Bonus   float64
}

// DefaultCohortTiers rewards the first fifty thousand reporters in four steps.
func DefaultCohortTiers() []CohortTier {
	return []CohortTier{
		{MaxRank: 100, Bonus: 0.40},
		{MaxRank: 1_000, Bonus: 0.25},
		{MaxRank: 10_000, Bonus: 0.15},
		{MaxRank: 50_000, Bonus: 0.05},
	}
}

// CohortBonus returns the bonus for a 1-based registration rank.
// Tiers must be sorted by MaxRank with non-increasing bonuses.
func CohortBonus(rank int64, tiers []CohortTier) float64 {
	if rank <= 0 {
		return 0
	}
	for _, tier := range tiers {
		if rank <= tier.MaxRank {
			return tier.Bonus
		}
	}
	return 0
}
