package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
)

// PlaylistSyncState tracks where a single playlist is in its write sequence.
// The first successful flush replaces the target contents and every later flush appends.
type PlaylistSyncState struct {
	PlaylistID string
	FirstBatch bool
}

// PlaylistResult summarizes one synchronized playlist.
type PlaylistResult struct {
	Name       string
	PlaylistID string
	Existed    bool
	Created    bool
	Processed  int
	Found      int
	Skipped    int
	Written    int
	Flushes    int
}

// PlaylistSynchronizer mirrors a source playlist onto a same-named target playlist.
type PlaylistSynchronizer struct {
	catalog   services.Catalog
	matcher   EntityMatcher
	audit     Auditor
	commit    bool
	public    bool
	batchSize int
	sleep     func(time.Duration)
	logger    *log.Logger
}

// NewPlaylistSynchronizer creates a synchronizer. Writes and playlist creation only happen when commit is true.
func NewPlaylistSynchronizer(catalog services.Catalog, matcher EntityMatcher, audit Auditor, commit bool) *PlaylistSynchronizer {
	return &PlaylistSynchronizer{
		catalog:   catalog,
		matcher:   matcher,
		audit:     audit,
		commit:    commit,
		batchSize: PlaylistBatchSize,
		sleep:     time.Sleep,
		logger:    shared.DiscardLogger(),
	}
}

// Sync resolves the target playlist, matches each live track and writes the matches in batches.
func (s *PlaylistSynchronizer) Sync(ctx context.Context, pl models.Playlist) (*PlaylistResult, error) {
	result := &PlaylistResult{Name: pl.Name}

	state, err := s.resolve(ctx, pl.Name, result)
	if err != nil {
		return result, err
	}

	writer := NewBatchWriter(s.batchSize, s.commit, s.writeFunc(state),
		FlushAtCapacity(),
		WithRateLimitRetry(),
		WithSleep(s.sleep),
		WithBatchLogger(s.logger.With("playlist", pl.Name)),
	)

	for t := range Live(slices.Values(pl.Tracks)) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		m, err := s.matcher.MatchTrack(ctx, t.Title, t.Artist, t.Album)
		if err != nil {
			return result, err
		}
		if !m.Found() {
			s.audit.Skipped(t.Artist, t.Album, t.Title)
			result.Skipped++
			continue
		}

		s.audit.Adding(m.URI, t.Artist, t.Album, t.Title)
		result.Found++
		if _, err := writer.Offer(ctx, m.URI); err != nil {
			return s.finish(result, writer), fmt.Errorf("playlist %q: %w", pl.Name, err)
		}
	}

	if err := writer.Flush(ctx); err != nil {
		return s.finish(result, writer), fmt.Errorf("playlist %q: %w", pl.Name, err)
	}
	return s.finish(result, writer), nil
}

func (s *PlaylistSynchronizer) finish(result *PlaylistResult, writer *BatchWriter) *PlaylistResult {
	result.Written = writer.Written()
	result.Flushes = writer.Flushes()
	return result
}

// resolve finds the target playlist by exact name, creating it only when committing.
func (s *PlaylistSynchronizer) resolve(ctx context.Context, name string, result *PlaylistResult) (*PlaylistSyncState, error) {
	state := &PlaylistSyncState{FirstBatch: true}

	existing, err := s.catalog.FindPlaylistByName(ctx, name)
	switch {
	case err == nil:
		s.audit.PlaylistFound(name, existing.ID)
		state.PlaylistID = existing.ID
		result.PlaylistID = existing.ID
		result.Existed = true
		return state, nil
	case !errors.Is(err, shared.ErrPlaylistNotFound):
		return nil, fmt.Errorf("failed to look up playlist %q: %w", name, err)
	}

	s.audit.CreatingPlaylist(name)
	if !s.commit {
		return state, nil
	}

	created, err := s.catalog.CreatePlaylist(ctx, name, s.public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	s.logger.Info("created playlist", "name", name, "id", created.ID)
	state.PlaylistID = created.ID
	result.PlaylistID = created.ID
	result.Created = true
	return state, nil
}

// writeFunc replaces on the first flush and appends afterwards.
// FirstBatch only flips once a write has succeeded.
func (s *PlaylistSynchronizer) writeFunc(state *PlaylistSyncState) WriteFunc {
	return func(ctx context.Context, uris []string) error {
		if state.FirstBatch {
			if err := s.catalog.ReplacePlaylistTracks(ctx, state.PlaylistID, uris); err != nil {
				return err
			}
			state.FirstBatch = false
			return nil
		}
		return s.catalog.AddPlaylistTracks(ctx, state.PlaylistID, uris)
	}
}
