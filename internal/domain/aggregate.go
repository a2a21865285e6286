package domain

import "time"

// ItemAggregate is the materialized consensus for one item.
type ItemAggregate struct {
	ItemID         string    `json:"itemId"`
	CollectionID   string    `json:"collectionId"`
	EffectiveScore float64   `json:"effectiveScore"`
	ReportCount    int64     `json:"reportCount"`
	Marked         bool      `json:"marked"`
	WasMarked      bool      `json:"wasMarked"`
	// FirstMarkedAt is when the item first reached the threshold; zero while it never has.
	FirstMarkedAt  time.Time `json:"firstMarkedAt"`
	FirstReportAt  time.Time `json:"firstReportAt"`
	LastUpdateAt   time.Time `json:"lastUpdateAt"`
	Version        int64     `json:"version"`
}

// AggregateQuery selects aggregates for distribution.
type AggregateQuery struct {
	// Since excludes rows whose last update is not strictly after it. Zero disables the bound.
	Since time.Time
	// WindowStart excludes rows last updated before it. Zero disables the bound.
	WindowStart time.Time
	// IncludeEvicted also returns rows that were marked at some point but no longer are.
	IncludeEvicted bool
}

// CommunityState is the singleton that carries the dynamic threshold.
type CommunityState struct {
	TotalReporters   int64     `json:"totalReporters"`
	ActiveReporters  int64     `json:"activeReporters"`
	AverageTrust     float64   `json:"averageTrust"`
	MaturityFactor   float64   `json:"maturityFactor"`
	DynamicThreshold float64   `json:"dynamicThreshold"`
	RecalculatedAt   time.Time `json:"recalculatedAt"`
}
