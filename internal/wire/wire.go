// Package wire encodes and decodes the snapshot/delta blobs shared by publisher and clients.
//
// Unknown fields are ignored so older clients keep reading newer blobs. A blob without a
// well-formed items array, without generatedAt, or whose itemCount disagrees with the items
// is rejected as a whole.
package wire

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"SlopConsensus/internal/domain"
)

type metadata struct {
	Kind        string     `json:"kind,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt"`
	ItemCount   *int       `json:"itemCount"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
	WindowEnd   *time.Time `json:"windowEnd,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
}

type item struct {
	ItemID         string    `json:"itemId"`
	CollectionID   string    `json:"collectionId"`
	EffectiveScore float64   `json:"effectiveScore"`
	ReportCount    int64     `json:"reportCount"`
	Marked         bool      `json:"marked"`
	FirstReportAt  time.Time `json:"firstReportAt"`
	LastUpdateAt   time.Time `json:"lastUpdateAt"`
}

type envelope struct {
	Metadata metadata `json:"metadata"`
	Items    []item   `json:"items"`
}

type rawEnvelope struct {
	Metadata json.RawMessage `json:"metadata"`
	Items    json.RawMessage `json:"items"`
}

// Encode serializes an artifact. ItemCount is always taken from the items.
func Encode(a domain.Artifact) ([]byte, error) {
	count := len(a.Items)
	generated := a.Metadata.GeneratedAt.UTC()
	env := envelope{
		Metadata: metadata{
			Kind:        string(a.Metadata.Kind),
			GeneratedAt: &generated,
			ItemCount:   &count,
			WindowStart: optionalTime(a.Metadata.WindowStart),
			WindowEnd:   optionalTime(a.Metadata.WindowEnd),
			Since:       optionalTime(a.Metadata.Since),
		},
		Items: make([]item, 0, count),
	}
	for _, e := range a.Items {
		env.Items = append(env.Items, item{
			ItemID:         e.ItemID,
			CollectionID:   e.CollectionID,
			EffectiveScore: e.EffectiveScore,
			ReportCount:    e.ReportCount,
			Marked:         e.Marked,
			FirstReportAt:  e.FirstReportAt.UTC(),
			LastUpdateAt:   e.LastUpdateAt.UTC(),
		})
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// Decode parses and validates a blob. Every failure wraps domain.ErrInvalidBlob.
func Decode(data []byte) (domain.Artifact, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Artifact{}, invalid("parse envelope: %v", err)
	}
	if isAbsent(raw.Items) {
		return domain.Artifact{}, invalid("items missing")
	}
	if isAbsent(raw.Metadata) {
		return domain.Artifact{}, invalid("metadata missing")
	}

	var meta metadata
	if err := json.Unmarshal(raw.Metadata, &meta); err != nil {
		return domain.Artifact{}, invalid("parse metadata: %v", err)
	}
	if meta.GeneratedAt == nil || meta.GeneratedAt.IsZero() {
		return domain.Artifact{}, invalid("metadata.generatedAt missing")
	}

	var items []item
	if err := json.Unmarshal(raw.Items, &items); err != nil {
		return domain.Artifact{}, invalid("parse items: %v", err)
	}
	if meta.ItemCount != nil && *meta.ItemCount != len(items) {
		return domain.Artifact{}, invalid("itemCount %d does not match %d items", *meta.ItemCount, len(items))
	}

	out := domain.Artifact{
		Metadata: domain.ArtifactMetadata{
			Kind:        domain.ArtifactKind(meta.Kind),
			GeneratedAt: meta.GeneratedAt.UTC(),
			ItemCount:   len(items),
			WindowStart: derefTime(meta.WindowStart),
			WindowEnd:   derefTime(meta.WindowEnd),
			Since:       derefTime(meta.Since),
		},
		Items: make([]domain.CacheEntry, 0, len(items)),
	}
	for i, it := range items {
		if it.ItemID == "" {
			return domain.Artifact{}, invalid("item %d has no itemId", i)
		}
		out.Items = append(out.Items, domain.CacheEntry{
			ItemID:         it.ItemID,
			CollectionID:   it.CollectionID,
			EffectiveScore: it.EffectiveScore,
			ReportCount:    it.ReportCount,
			Marked:         it.Marked,
			FirstReportAt:  it.FirstReportAt.UTC(),
			LastUpdateAt:   it.LastUpdateAt.UTC(),
		})
	}
	return out, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidBlob, fmt.Sprintf(format, args...))
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
