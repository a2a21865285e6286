package surface

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"SlopConsensus/internal/domain"
)

func TestIdentify(t *testing.T) {
	t.Parallel()

	reg := Default()
	tests := []struct {
		name    string
		raw     string
		surface string
		item    string
		channel string
	}{
		{name: "watch", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", surface: "watch", item: "dQw4w9WgXcQ"},
		{name: "watch without scheme", raw: "youtube.com/watch?v=dQw4w9WgXcQ", surface: "watch", item: "dQw4w9WgXcQ"},
		{name: "mobile embed", raw: "https://m.youtube.com/embed/dQw4w9WgXcQ", surface: "watch", item: "dQw4w9WgXcQ"},
		{name: "shorts", raw: "https://youtube.com/shorts/abcDEF12_-z?feature=share", surface: "shorts", item: "abcDEF12_-z"},
		{name: "short link with channel", raw: "https://youtu.be/dQw4w9WgXcQ?ab_channel=RickAstley", surface: "shortlink", item: "dQw4w9WgXcQ", channel: "RickAstley"},
		{name: "bare id", raw: "  dQw4w9WgXcQ ", surface: "id", item: "dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := reg.Identify(tt.raw, "")
			require.NoError(t, err)
			require.Equal(t, tt.surface, ref.Surface)
			require.Equal(t, tt.item, ref.ItemID)
			require.Equal(t, tt.channel, ref.CollectionID)
		})
	}
}

func TestIdentifyRejects(t *testing.T) {
	t.Parallel()

	reg := Default()
	for _, raw := range []string{
		"",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/feed/subscriptions",
		"not an id",
	} {
		_, err := reg.Identify(raw, "")
		require.ErrorIs(t, err, ErrUnrecognized, raw)
	}
}

func TestCollectionOverride(t *testing.T) {
	t.Parallel()

	ref, err := Default().Identify("https://youtu.be/dQw4w9WgXcQ?ab_channel=Hint", "UC123")
	require.NoError(t, err)
	require.Equal(t, "UC123", ref.CollectionID)

	entry := ref.Entry(domain.OpReport, "me")
	require.Equal(t, domain.BatchEntry{Op: domain.OpReport, ItemID: "dQw4w9WgXcQ", CollectionID: "UC123", ReporterID: "me"}, entry)
}

type fixedSurface struct{}

func (fixedSurface) Name() string { return "fixed" }

func (fixedSurface) Resolve(u *url.URL) (ItemRef, bool) {
	if u.Host != "videos.example.org" {
		return ItemRef{}, false
	}
	return ItemRef{Surface: "fixed", ItemID: u.Path[1:]}, true
}

func TestRegisterCustomSurface(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(fixedSurface{})

	s, err := reg.Lookup("fixed")
	require.NoError(t, err)
	require.Equal(t, "fixed", s.Name())

	_, err = reg.Lookup("watch")
	require.Error(t, err)

	ref, err := reg.Identify("https://videos.example.org/clip-9", "")
	require.NoError(t, err)
	require.Equal(t, "clip-9", ref.ItemID)
}
