package domain

import "time"

// Well-known blob names written by the publisher and read by clients.
const (
	SnapshotBlobName = "snapshot.json"
	DeltaBlobName    = "delta-latest.json"
)

// ArtifactKind tags a distribution blob.
type ArtifactKind string

const (
	KindSnapshot ArtifactKind = "snapshot"
	KindDelta    ArtifactKind = "delta"
)

// ArtifactMetadata describes a snapshot or delta.
type ArtifactMetadata struct {
	Kind        ArtifactKind
	GeneratedAt time.Time
	ItemCount   int
	WindowStart time.Time
	WindowEnd   time.Time
	Since       time.Time
}

// Artifact is a decoded snapshot or delta.
type Artifact struct {
	Metadata ArtifactMetadata
	Items    []CacheEntry
}

// CacheEntry is the client-side projection of an item aggregate.
type CacheEntry struct {
	ItemID         string    `json:"itemId"`
	CollectionID   string    `json:"collectionId"`
	EffectiveScore float64   `json:"effectiveScore"`
	ReportCount    int64     `json:"reportCount"`
	Marked         bool      `json:"marked"`
	FirstReportAt  time.Time `json:"firstReportAt"`
	LastUpdateAt   time.Time `json:"lastUpdateAt"`
}

// EntryFromAggregate projects an aggregate onto the fields clients keep.
func EntryFromAggregate(a ItemAggregate) CacheEntry {
	return CacheEntry{
		ItemID:         a.ItemID,
		CollectionID:   a.CollectionID,
		EffectiveScore: a.EffectiveScore,
		ReportCount:    a.ReportCount,
		Marked:         a.Marked,
		FirstReportAt:  a.FirstReportAt,
		LastUpdateAt:   a.LastUpdateAt,
	}
}
