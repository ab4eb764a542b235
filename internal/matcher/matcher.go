// package matcher turns source metadata into target catalog identifiers with a single
// normalized search per entity
package matcher

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
)

// Searcher is the search capability of the target catalog.
type Searcher interface {
	Search(ctx context.Context, query string, kind services.SearchKind, limit int) ([]services.SearchResult, error)
}

// Matcher resolves albums, artists and tracks. It issues exactly one search per call and
// takes the first candidate; there is no fallback query and no similarity scoring.
type Matcher struct {
	searcher Searcher
	logger   *log.Logger
}

// New creates a [Matcher]. A nil logger discards output.
func New(searcher Searcher, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Matcher{searcher: searcher, logger: logger}
}

// AlbumQuery builds the album search string.
func AlbumQuery(artist, album string) string {
	return fmt.Sprintf("artist:%s album:%s", NormalizeArtist(artist), Normalize(album))
}

// ArtistQuery builds the artist search string.
func ArtistQuery(artist string) string {
	return "artist:" + NormalizeArtist(artist)
}

// TrackQuery builds the track search string.
func TrackQuery(title, artist, album string) string {
	return fmt.Sprintf("track:%s artist:%s album:%s", Normalize(title), NormalizeArtist(artist), Normalize(album))
}

// MatchAlbum looks up an album by artist and album name.
func (m *Matcher) MatchAlbum(ctx context.Context, artist, album string) (models.MatchResult, error) {
	return m.match(ctx, AlbumQuery(artist, album), services.SearchAlbum)
}

// MatchArtist looks up an artist by name.
func (m *Matcher) MatchArtist(ctx context.Context, artist string) (models.MatchResult, error) {
	return m.match(ctx, ArtistQuery(artist), services.SearchArtist)
}

// MatchTrack looks up a track by title, artist and album.
func (m *Matcher) MatchTrack(ctx context.Context, title, artist, album string) (models.MatchResult, error) {
	return m.match(ctx, TrackQuery(title, artist, album), services.SearchTrack)
}

func (m *Matcher) match(ctx context.Context, query string, kind services.SearchKind) (models.MatchResult, error) {
	results, err := m.searcher.Search(ctx, query, kind, 1)
	if err != nil {
		return models.NotFound, fmt.Errorf("search %s %q: %w", kind, query, err)
	}
	if len(results) == 0 || results[0].URI == "" {
		m.logger.Debug("no match", "kind", kind, "query", query)
		return models.NotFound, nil
	}
	m.logger.Debug("matched", "kind", kind, "query", query, "uri", results[0].URI)
	return models.MatchResult{URI: results[0].URI}, nil
}
