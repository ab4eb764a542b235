package source

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
)

// YTMusic reads the library and playlists through a [services.Source], normally the
// YouTube Music proxy.
type YTMusic struct {
	svc    services.Source
	logger *log.Logger
}

// NewYTMusic creates a [Backend] over svc.
func NewYTMusic(svc services.Source, logger *log.Logger) *YTMusic {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &YTMusic{svc: svc, logger: logger}
}

func (y *YTMusic) FetchTracks(ctx context.Context) ([]models.Track, error) {
	y.logger.Info("requesting library", "service", y.svc.Name())
	songs, err := y.svc.LibrarySongs(ctx)
	if err != nil {
		return nil, err
	}
	y.logger.Info("received library", "songs", len(songs))
	return convertTracks(songs), nil
}

// FetchPlaylists exports every playlist in turn. One failed export aborts the fetch so
// that a partial snapshot is never cached.
func (y *YTMusic) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	y.logger.Info("requesting playlists", "service", y.svc.Name())
	summaries, err := y.svc.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	lists := make([]models.Playlist, 0, len(summaries))
	for _, summary := range summaries {
		export, err := y.svc.ExportPlaylist(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export playlist %q: %w", summary.Name, err)
		}
		lists = append(lists, models.Playlist{Name: summary.Name, Tracks: convertTracks(export.Tracks)})
	}
	y.logger.Info("received playlists", "playlists", len(lists))
	return lists, nil
}

func convertTracks(in []services.Track) []models.Track {
	out := make([]models.Track, len(in))
	for i, t := range in {
		out[i] = models.Track{
			Title:     t.Title,
			Artist:    t.Artist,
			Album:     t.Album,
			PlayCount: t.PlayCount,
			Deleted:   t.Deleted,
		}
	}
	return out
}
