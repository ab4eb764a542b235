package models

// Track is a single source library row. Values are treated as immutable once produced by a source.
type Track struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	PlayCount int    `json:"playCount"`
	Deleted   bool   `json:"deleted"`
}

// Valid reports whether the row carries every field the matcher needs.
func (t Track) Valid() bool {
	return t.Title != "" && t.Artist != "" && t.Album != ""
}

// Live reports whether the track has been played and is not deleted at the source.
func (t Track) Live() bool {
	return !t.Deleted && t.PlayCount > 0
}

// AlbumKey is the dedup identity used by the albums pass.
func AlbumKey(t Track) string {
	return t.Artist + ":" + t.Album
}

// ArtistKey is the dedup identity used by the artists pass.
func ArtistKey(t Track) string {
	return t.Artist
}

// Playlist is a named, ordered list of tracks. Construct it with [NewPlaylist] so that the
// non-empty invariant holds.
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// NewPlaylist builds a playlist and reports false when it has no tracks.
func NewPlaylist(name string, tracks []Track) (Playlist, bool) {
	if len(tracks) == 0 {
		return Playlist{}, false
	}
	return Playlist{Name: name, Tracks: tracks}, true
}
