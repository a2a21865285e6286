package domain

import "time"

// Reporter is one anonymous installation identity.
type Reporter struct {
	ID              string
	FirstSeen       time.Time
	LastActive      time.Time
	CohortRank      int64
	CohortBonus     float64
	AccurateCount   int64
	InaccurateCount int64
	PendingCount    int64
	// TrustScore is a cached value; recompute it from the fields above.
	TrustScore    float64
	Flagged       bool
	FlaggedReason string
}

// JudgedCount is the number of reports that have received an accuracy verdict.
func (r Reporter) JudgedCount() int64 {
	return r.AccurateCount + r.InaccurateCount
}

// AgeDays returns the fractional number of days since first registration.
func (r Reporter) AgeDays(now time.Time) float64 {
	if r.FirstSeen.IsZero() || now.Before(r.FirstSeen) {
		return 0
	}
	return now.Sub(r.FirstSeen).Hours() / 24
}

// TrustProfile is the read-only view returned to a reporter about themselves.
type TrustProfile struct {
	ReporterID      string    `json:"reporterId"`
	TrustScore      float64   `json:"trustScore"`
	AccuracyRate    float64   `json:"accuracyRate"`
	CohortRank      int64     `json:"cohortRank"`
	CohortBonus     float64   `json:"cohortBonus"`
	AccurateCount   int64     `json:"accurateCount"`
	InaccurateCount int64     `json:"inaccurateCount"`
	PendingCount    int64     `json:"pendingCount"`
	AgeDays         float64   `json:"ageDays"`
	Flagged         bool      `json:"flagged"`
	FirstSeen       time.Time `json:"firstSeen"`
}
