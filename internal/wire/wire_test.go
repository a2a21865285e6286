package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

var generated = time.Date(2026, time.May, 2, 10, 30, 0, 0, time.UTC)

func TestEncodeDecodeSnapshot(t *testing.T) {
	t.Parallel()

	in := domain.Artifact{
		Metadata: domain.ArtifactMetadata{
			Kind:        domain.KindSnapshot,
			GeneratedAt: generated,
			WindowStart: generated.Add(-48 * time.Hour),
			WindowEnd:   generated,
		},
		Items: []domain.CacheEntry{
			{ItemID: "v1", CollectionID: "c1", EffectiveScore: 2.75, ReportCount: 4, Marked: true, FirstReportAt: generated.Add(-time.Hour), LastUpdateAt: generated},
		},
	}

	data, err := Encode(in)
	require.NoError(t, err)
	require.Contains(t, string(data), `"itemCount":1`)

	out, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 1, out.Metadata.ItemCount)
	require.Equal(t, in.Metadata.WindowStart, out.Metadata.WindowStart)
	require.True(t, out.Metadata.Since.IsZero())
	require.Equal(t, in.Items, out.Items)
}

func TestDecodeToleratesUnknownAndMissingOptionalFields(t *testing.T) {
	t.Parallel()

	blob := `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z","schema":7},"items":[{"itemId":"v1","marked":true,"extra":"x"}],"signature":"abc"}`
	out, err := Decode([]byte(blob))
	require.NoError(t, err)
	require.Equal(t, generated, out.Metadata.GeneratedAt)
	require.Len(t, out.Items, 1)
	require.True(t, out.Items[0].Marked)
}

func TestDecodeRejectsStructuralProblems(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":        `{"metadata":`,
		"items missing":   `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z"}}`,
		"items null":      `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z"},"items":null}`,
		"items object":    `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z"},"items":{"v1":{}}}`,
		"no generatedAt":  `{"metadata":{"itemCount":0},"items":[]}`,
		"count mismatch":  `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z","itemCount":2},"items":[{"itemId":"v1"}]}`,
		"item without id": `{"metadata":{"generatedAt":"2026-05-02T10:30:00Z"},"items":[{"marked":true}]}`,
	}
	for name, blob := range cases {
		_, err := Decode([]byte(blob))
		require.ErrorIs(t, err, domain.ErrInvalidBlob, name)
	}
}
