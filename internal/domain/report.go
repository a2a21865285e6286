package domain

import "time"

// Judgment is the accuracy verdict attached to a report after the evaluation delay.
type Judgment string

const (
	JudgmentPending    Judgment = "pending"
	JudgmentAccurate   Judgment = "accurate"
	JudgmentInaccurate Judgment = "inaccurate"
)

// Report is one reporter's claim that an item is slop. Unique per (ItemID, ReporterID).
type Report struct {
	ItemID       string
	CollectionID string
	ReporterID   string
	// TrustWeight is captured when the report is created and never recomputed.
	TrustWeight float64
	Judgment    Judgment
	JudgedAt    time.Time
	CreatedAt   time.Time
	WithdrawnAt time.Time
}

// Withdrawn reports no longer count towards the item's score.
func (r Report) Withdrawn() bool {
	return !r.WithdrawnAt.IsZero()
}

// UpsertOutcome classifies the result of inserting a report.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	// UpsertDuplicate means an active report for the pair already exists.
	UpsertDuplicate
	// UpsertWithdrawn means the pair was reported and then withdrawn; re-reporting is refused.
	UpsertWithdrawn
)

// RemoveOutcome classifies the result of withdrawing a report.
type RemoveOutcome int

const (
	RemoveWithdrawn RemoveOutcome = iota
	RemoveNotFound
)
