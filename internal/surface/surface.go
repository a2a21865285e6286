// Package surface turns what the user is looking at into an item reference.
package surface

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"SlopConsensus/internal/domain"
)

// ErrUnrecognized is returned when no registered surface understands the input.
var ErrUnrecognized = errors.New("unrecognized item reference")

// ItemRef identifies a reportable item.
type ItemRef struct {
	Surface      string
	ItemID       string
	CollectionID string
}

// Entry builds the batch operation for a reporter acting on the item.
func (r ItemRef) Entry(op domain.BatchOp, reporterID string) domain.BatchEntry {
	return domain.BatchEntry{Op: op, ItemID: r.ItemID, CollectionID: r.CollectionID, ReporterID: reporterID}
}

// Surface recognises one kind of page or link.
type Surface interface {
	Name() string
	Resolve(u *url.URL) (ItemRef, bool)
}

// Registry keeps surfaces by name and tries them in name order.
type Registry struct {
	surfaces map[string]Surface
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: map[string]Surface{}}
}

// Default returns a registry with every built-in surface.
func Default() *Registry {
	r := NewRegistry()
	r.Register(WatchPage{})
	r.Register(Shorts{})
	r.Register(ShortLink{})
	return r
}

// Register adds or replaces a surface implementation.
func (r *Registry) Register(s Surface) {
	if r.surfaces == nil {
		r.surfaces = map[string]Surface{}
	}
	r.surfaces[s.Name()] = s
}

// Lookup returns a surface by name.
func (r *Registry) Lookup(name string) (Surface, error) {
	if s, ok := r.surfaces[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("surface %s is not registered", name)
}

// Identify resolves a page URL or a bare item id. collectionID, when set, overrides
// whatever the surface could infer.
func (r *Registry) Identify(raw, collectionID string) (ItemRef, error) {
	raw = strings.TrimSpace(raw)
	if isItemID(raw) {
		return ItemRef{Surface: "id", ItemID: raw, CollectionID: collectionID}, nil
	}

	u, err := parseLoose(raw)
	if err != nil {
		return ItemRef{}, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
	}

	names := make([]string, 0, len(r.surfaces))
	for name := range r.surfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref, ok := r.surfaces[name].Resolve(u)
		if !ok {
			continue
		}
		if collectionID != "" {
			ref.CollectionID = collectionID
		}
		return ref, nil
	}
	return ItemRef{}, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
}

func parseLoose(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("no host")
	}
	return u, nil
}

// isItemID accepts the 11 character video id alphabet.
func isItemID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func isVideoHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	return host == "youtube.com" || host == "m.youtube.com" || host == "music.youtube.com"
}

// WatchPage handles /watch?v= and /embed/ links.
type WatchPage struct{}

func (WatchPage) Name() string { return "watch" }

func (WatchPage) Resolve(u *url.URL) (ItemRef, bool) {
	if !isVideoHost(u.Host) {
		return ItemRef{}, false
	}
	id := ""
	switch {
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/embed/"):
		id = firstSegment(strings.TrimPrefix(u.Path, "/embed/"))
	}
	if !isItemID(id) {
		return ItemRef{}, false
	}
	return ItemRef{Surface: "watch", ItemID: id, CollectionID: channelHint(u)}, true
}

// Shorts handles /shorts/<id>.
type Shorts struct{}

func (Shorts) Name() string { return "shorts" }

func (Shorts) Resolve(u *url.URL) (ItemRef, bool) {
	if !isVideoHost(u.Host) || !strings.HasPrefix(u.Path, "/shorts/") {
		return ItemRef{}, false
	}
	id := firstSegment(strings.TrimPrefix(u.Path, "/shorts/"))
	if !isItemID(id) {
		return ItemRef{}, false
	}
	return ItemRef{Surface: "shorts", ItemID: id, CollectionID: channelHint(u)}, true
}

// ShortLink handles youtu.be/<id>.
type ShortLink struct{}

func (ShortLink) Name() string { return "shortlink" }

func (ShortLink) Resolve(u *url.URL) (ItemRef, bool) {
	if !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "youtu.be") {
		return ItemRef{}, false
	}
	id := firstSegment(strings.TrimPrefix(u.Path, "/"))
	if !isItemID(id) {
		return ItemRef{}, false
	}
	return ItemRef{Surface: "shortlink", ItemID: id, CollectionID: channelHint(u)}, true
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// channelHint reads the ab_channel parameter some share links carry.
func channelHint(u *url.URL) string {
	return u.Query().Get("ab_channel")
}
