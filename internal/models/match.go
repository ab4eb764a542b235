package models

import "fmt"

// MatchResult carries the target catalog identifier for a source entity.
// An empty URI means nothing matched; that is a normal outcome, not an error.
type MatchResult struct {
	URI string
}

// Found reports whether the target catalog returned a candidate.
func (m MatchResult) Found() bool {
	return m.URI != ""
}

// NotFound is the zero-value miss.
var NotFound = MatchResult{}

// Kind selects which entity kind a reconciliation pass handles.
type Kind string

const (
	KindAlbums    Kind = "albums"
	KindArtists   Kind = "artists"
	KindPlaylists Kind = "playlists"
)

// ParseKind validates an operation selector.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAlbums, KindArtists, KindPlaylists:
		return k, nil
	default:
		return "", fmt.Errorf("unknown operation %q (must be albums, artists or playlists)", s)
	}
}

func (k Kind) String() string { return string(k) }
