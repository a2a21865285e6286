package consensus

import (
	"fmt"
	"time"

	"SlopConsensus/internal/domain"
)

// scoreEpsilon absorbs float summation noise so a score equal to the threshold stays marked.
const scoreEpsilon = 1e-9

// RecomputeResult is the new aggregate plus the reports that were left out.
type RecomputeResult struct {
	Aggregate domain.ItemAggregate
	Skipped   int
}

// Recompute derives an item aggregate from its current report set.
// Withdrawn reports are ignored. A negative weight is an invariant violation: strict mode
// fails with ErrInvalidWeight, lenient mode skips the report and counts it in Skipped.
// FirstMarkedAt is set on the first crossing and never cleared. The version always advances; LastUpdateAt only moves when score, count or mark change.
func Recompute(current domain.ItemAggregate, reports []domain.Report, threshold float64, now time.Time, strict bool) (RecomputeResult, error) {
	next := current
	var (
		score   float64
		count   int64
		skipped int
		first   time.Time
	)

	for _, rep := range reports {
		if rep.Withdrawn() {
			continue
		}
		if rep.TrustWeight < 0 {
			if strict {
				return RecomputeResult{}, fmt.Errorf("item %s reporter %s weight %.4f: %w",
					rep.ItemID, rep.ReporterID, rep.TrustWeight, domain.ErrInvalidWeight)
			}
			skipped++
			continue
		}
		score += rep.TrustWeight
		count++
		if first.IsZero() || (!rep.CreatedAt.IsZero() && rep.CreatedAt.Before(first)) {
			first = rep.CreatedAt
		}
		if next.CollectionID == "" {
			next.CollectionID = rep.CollectionID
		}
	}

	next.EffectiveScore = score
	next.ReportCount = count
	next.Marked = count > 0 && score+scoreEpsilon >= threshold
	next.WasMarked = current.WasMarked || next.Marked
	if next.Marked && next.FirstMarkedAt.IsZero() {
		next.FirstMarkedAt = now
	}
	next.Version = current.Version + 1

	if next.FirstReportAt.IsZero() {
		next.FirstReportAt = first
		if next.FirstReportAt.IsZero() {
			next.FirstReportAt = now
		}
	}

	fresh := current.Version == 0
	changed := fresh ||
		current.ReportCount != next.ReportCount ||
		current.Marked != next.Marked ||
		!sameScore(current.EffectiveScore, next.EffectiveScore)
	if changed || next.LastUpdateAt.IsZero() {
		next.LastUpdateAt = now
	}

	return RecomputeResult{Aggregate: next, Skipped: skipped}, nil
}

func sameScore(a, b float64) bool {
	d := a - b
	return d < scoreEpsilon && d > -scoreEpsilon
}
