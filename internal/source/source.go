// package source enumerates the source catalog: the track library and the playlist
// collection, as restartable sequences backed by a snapshot cache
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/shared"
)

// Snapshot kinds stored in the cache.
const (
	SnapshotLibrary   = "library"
	SnapshotPlaylists = "playlists"
)

// Backend fetches a full snapshot from a source provider.
//
// Implementations drop rows that the provider marks as removed. Rows with missing
// fields may be returned; [NewLibrary] and [NewCollection] filter them.
type Backend interface {
	FetchTracks(ctx context.Context) ([]models.Track, error)
	FetchPlaylists(ctx context.Context) ([]models.Playlist, error)
}

// SnapshotCache persists raw snapshots keyed by account identity and kind.
// Load returns an error wrapping [shared.ErrSnapshotNotFound] on a miss.
type SnapshotCache interface {
	Load(account, kind string) ([]byte, error)
	Save(account, kind string, payload []byte) error
}

// Library is the filtered track library.
type Library struct {
	tracks []models.Track
}

// NewLibrary keeps only rows with a title, artist and album.
func NewLibrary(tracks []models.Track) *Library {
	valid := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.Valid() {
			valid = append(valid, t)
		}
	}
	return &Library{tracks: valid}
}

// Len is the number of tracks in the library.
func (l *Library) Len() int { return len(l.tracks) }

// Tracks yields every track in source order.
func (l *Library) Tracks() iter.Seq[models.Track] {
	return func(yield func(models.Track) bool) {
		for _, t := range l.tracks {
			if !yield(t) {
				return
			}
		}
	}
}

// Collection is the filtered playlist collection.
type Collection struct {
	playlists []models.Playlist
}

// NewCollection filters malformed tracks out of each playlist and drops playlists left
// with no tracks.
func NewCollection(lists []models.Playlist) *Collection {
	kept := make([]models.Playlist, 0, len(lists))
	for _, pl := range lists {
		tracks := make([]models.Track, 0, len(pl.Tracks))
		for _, t := range pl.Tracks {
			if t.Valid() {
				tracks = append(tracks, t)
			}
		}
		if p, ok := models.NewPlaylist(pl.Name, tracks); ok {
			kept = append(kept, p)
		}
	}
	return &Collection{playlists: kept}
}

// Len is the number of playlists in the collection.
func (c *Collection) Len() int { return len(c.playlists) }

// Playlists yields every playlist in source order.
func (c *Collection) Playlists() iter.Seq[models.Playlist] {
	return func(yield func(models.Playlist) bool) {
		for _, p := range c.playlists {
			if !yield(p) {
				return
			}
		}
	}
}

// Skip drops the first n elements of seq. It is how an interrupted run resumes.
func Skip[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		i := 0
		for v := range seq {
			if i < n {
				i++
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Option configures an [Enumerator].
type Option func(*Enumerator)

// WithCache reads snapshots through cache.
func WithCache(cache SnapshotCache) Option {
	return func(e *Enumerator) { e.cache = cache }
}

// WithRefresh ignores cached snapshots and overwrites them with fresh ones.
func WithRefresh(refresh bool) Option {
	return func(e *Enumerator) { e.refresh = refresh }
}

// WithLogger sets the enumerator logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Enumerator) { e.logger = l }
}

// Enumerator loads each snapshot at most once per process.
type Enumerator struct {
	backend Backend
	account string
	cache   SnapshotCache
	refresh bool
	logger  *log.Logger

	library    *Library
	collection *Collection
}

// NewEnumerator creates an [Enumerator] for the source identified by account.
func NewEnumerator(backend Backend, account string, opts ...Option) *Enumerator {
	e := &Enumerator{backend: backend, account: account, logger: shared.DiscardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Library returns the track library, fetching it on first use.
func (e *Enumerator) Library(ctx context.Context) (*Library, error) {
	if e.library != nil {
		return e.library, nil
	}

	tracks, err := load(ctx, e, SnapshotLibrary, e.backend.FetchTracks)
	if err != nil {
		return nil, err
	}

	e.library = NewLibrary(tracks)
	e.logger.Info("library loaded", "tracks", e.library.Len(), "rows", len(tracks))
	return e.library, nil
}

// Collection returns the playlist collection, fetching it on first use.
func (e *Enumerator) Collection(ctx context.Context) (*Collection, error) {
	if e.collection != nil {
		return e.collection, nil
	}

	lists, err := load(ctx, e, SnapshotPlaylists, e.backend.FetchPlaylists)
	if err != nil {
		return nil, err
	}

	e.collection = NewCollection(lists)
	e.logger.Info("playlists loaded", "playlists", e.collection.Len(), "fetched", len(lists))
	return e.collection, nil
}

// load reads a snapshot from the cache or, on a miss, from fetch, saving the fresh one.
// Cache failures are logged and never fail the run.
func load[T any](ctx context.Context, e *Enumerator, kind string, fetch func(context.Context) (T, error)) (T, error) {
	var snapshot T

	if e.cache != nil && !e.refresh {
		payload, err := e.cache.Load(e.account, kind)
		switch {
		case err == nil:
			if err := json.Unmarshal(payload, &snapshot); err != nil {
				e.logger.Warn("discarding unreadable snapshot", "kind", kind, "error", err)
				break
			}
			e.logger.Debug("snapshot cache hit", "account", e.account, "kind", kind)
			return snapshot, nil
		case errors.Is(err, shared.ErrSnapshotNotFound):
			e.logger.Debug("snapshot cache miss", "account", e.account, "kind", kind)
		default:
			e.logger.Warn("snapshot cache unavailable", "kind", kind, "error", err)
		}
	}

	snapshot, err := fetch(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("%w: fetch %s: %w", shared.ErrSourceUnavailable, kind, err)
	}

	if e.cache != nil {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return snapshot, fmt.Errorf("failed to encode %s snapshot: %w", kind, err)
		}
		if err := e.cache.Save(e.account, kind, payload); err != nil {
			e.logger.Warn("failed to save snapshot", "kind", kind, "error", err)
		}
	}
	return snapshot, nil
}
