// YouTube Music [Source] implementation
//
// Communicates with the FastAPI proxy server that wraps the ytmusicapi Python library.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/catalogx/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
//
// PlayCount and IsAvailable are pointers because the proxy omits them for some endpoints.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	DurationSec int             `json:"duration_seconds"`
	PlayCount   *int            `json:"playCount,omitempty"`
	IsAvailable *bool           `json:"isAvailable,omitempty"`
}

// toTrack flattens the proxy's shape. A missing play count counts as one play: the
// song is in the library, so the user listened to it at least once.
func (ytt YouTubeTrack) toTrack() Track {
	track := Track{
		ID:        ytt.VideoID,
		Title:     ytt.Title,
		Duration:  ytt.DurationSec,
		PlayCount: 1,
	}

	if len(ytt.Artists) > 0 {
		track.Artist = ytt.Artists[0].Name
	}
	if ytt.Album != nil {
		track.Album = ytt.Album.Name
	}
	if ytt.PlayCount != nil {
		track.PlayCount = *ytt.PlayCount
	}
	if ytt.IsAvailable != nil {
		track.Deleted = !*ytt.IsAvailable
	}
	return track
}

// YouTubeService implements [Source] for YouTube Music via proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("missing auth_file in credentials")
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music proxy (status %d): %s", statusError("youtube music", resp), resp.StatusCode, errResp.Detail)
		}
		return statusError("youtube music", resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// LibrarySongs retrieves every song saved in the user's library.
//
// Calls GET /api/library/songs on the proxy.
func (y *YouTubeService) LibrarySongs(ctx context.Context) ([]Track, error) {
	var songs []YouTubeTrack
	if err := y.doRequest(ctx, "/api/library/songs", &songs); err != nil {
		return nil, err
	}

	tracks := make([]Track, len(songs))
	for i, s := range songs {
		tracks[i] = s.toTrack()
	}
	return tracks, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
//
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	var ytPlaylists []struct {
		PlaylistID  string `json:"playlistId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Privacy     string `json:"privacy"`
		Count       int    `json:"count"`
	}

	if err := y.doRequest(ctx, "/api/library/playlists", &ytPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]Playlist, len(ytPlaylists))
	for i, ytp := range ytPlaylists {
		playlists[i] = Playlist{
			ID:          ytp.PlaylistID,
			Name:        ytp.Title,
			Description: ytp.Description,
			TrackCount:  ytp.Count,
			Public:      ytp.Privacy == "PUBLIC",
		}
	}

	return playlists, nil
}

// ExportPlaylist exports a playlist with all its tracks.
//
// Calls GET /api/playlists/{id} on the proxy.
func (y *YouTubeService) ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error) {
	var ytPlaylist struct {
		ID          string         `json:"id"`
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Privacy     string         `json:"privacy"`
		TrackCount  int            `json:"trackCount"`
		Tracks      []YouTubeTrack `json:"tracks"`
	}

	endpoint := "/api/playlists/" + url.PathEscape(playlistID)
	if err := y.doRequest(ctx, endpoint, &ytPlaylist); err != nil {
		return nil, err
	}

	playlist := Playlist{
		ID:          ytPlaylist.ID,
		Name:        ytPlaylist.Title,
		Description: ytPlaylist.Description,
		TrackCount:  ytPlaylist.TrackCount,
		Public:      ytPlaylist.Privacy == "PUBLIC",
	}

	tracks := make([]Track, len(ytPlaylist.Tracks))
	for i, ytt := range ytPlaylist.Tracks {
		tracks[i] = ytt.toTrack()
	}

	return &PlaylistExport{
		Playlist: playlist,
		Tracks:   tracks,
	}, nil
}
