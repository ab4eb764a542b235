// package services defines the target [Catalog] capability and the HTTP clients for
// Spotify (target) and YouTube Music via proxy (source)
package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/catalogx/internal/shared"
)

// SearchKind is the entity type passed to a catalog search.
type SearchKind string

const (
	SearchAlbum  SearchKind = "album"
	SearchArtist SearchKind = "artist"
	SearchTrack  SearchKind = "track"
)

// SearchResult is a single search candidate.
type SearchResult struct {
	URI  string
	Name string
}

// RemotePlaylist is a playlist owned by the target account.
type RemotePlaylist struct {
	ID   string
	Name string
	URI  string
}

// Catalog is everything the reconciliation engine needs from the target catalog.
//
// Every write method takes one logical batch. Implementations split it into whatever
// chunk sizes the remote API accepts.
type Catalog interface {
	// Search returns at most limit candidates for query, most relevant first.
	Search(ctx context.Context, query string, kind SearchKind, limit int) ([]SearchResult, error)

	// FindPlaylistByName returns the first owned playlist whose name equals name exactly.
	// Returns an error wrapping [shared.ErrPlaylistNotFound] when there is none.
	FindPlaylistByName(ctx context.Context, name string) (*RemotePlaylist, error)

	// CreatePlaylist creates an empty playlist.
	CreatePlaylist(ctx context.Context, name string, public bool) (*RemotePlaylist, error)

	// ReplacePlaylistTracks overwrites the playlist contents with uris.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// AddPlaylistTracks appends uris to the playlist.
	AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// SaveAlbums adds albums to the user's library.
	SaveAlbums(ctx context.Context, uris []string) error

	// FollowArtists follows artists on behalf of the user.
	FollowArtists(ctx context.Context, uris []string) error
}

// Source is a provider the library and playlists are read from.
type Source interface {
	// LibrarySongs returns every song in the user's library.
	LibrarySongs(ctx context.Context) ([]Track, error)

	// GetPlaylists retrieves all playlists for the authenticated user, without tracks.
	GetPlaylists(ctx context.Context) ([]Playlist, error)

	// ExportPlaylist retrieves a playlist with all its tracks.
	ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error)

	// Name returns the name of the service (e.g., "YouTube Music")
	Name() string
}

// Playlist represents a music playlist from a source service
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
}

// PlaylistExport represents a playlist with all its tracks
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []Track
}

// Track represents a music track from a source service
type Track struct {
	ID        string
	Title     string
	Artist    string
	Album     string
	Duration  int // Duration in seconds
	PlayCount int
	Deleted   bool
}

// RateLimitError is returned when the remote service answers 429.
// HasRetryAfter reports whether the response carried a usable Retry-After hint; a hint of
// zero is valid and means retry immediately.
type RateLimitError struct {
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	if e.HasRetryAfter {
		return fmt.Sprintf("%v: retry after %s", shared.ErrRateLimited, e.RetryAfter)
	}
	return shared.ErrRateLimited.Error()
}

// Is lets errors.Is(err, shared.ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == shared.ErrRateLimited
}

// statusError maps a non-2xx status to the error taxonomy.
func statusError(service string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &RateLimitError{RetryAfter: retryAfter, HasRetryAfter: ok}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s status %d", shared.ErrAuthFailed, service, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s status %d", shared.ErrServiceUnavailable, service, resp.StatusCode)
	default:
		return fmt.Errorf("%w: %s status %d", shared.ErrAPIRequest, service, resp.StatusCode)
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
