package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/catalogx/internal/shared"
)

func TestYouTubeService(t *testing.T) {
	t.Run("NewYouTubeService", func(t *testing.T) {
		t.Run("creates service with default URL", func(t *testing.T) {
			if svc := NewYouTubeService(""); svc == nil {
				t.Fatal("expected service to be created")
			} else if svc.baseURL != defaultYTBaseURL {
				t.Errorf("expected baseURL to be %s, got %s", defaultYTBaseURL, svc.baseURL)
			}
		})

		t.Run("trims trailing slash from custom URL", func(t *testing.T) {
			if svc := NewYouTubeService("http://localhost:9000/"); svc.baseURL != "http://localhost:9000" {
				t.Errorf("expected trimmed baseURL, got %s", svc.baseURL)
			}
		})
	})

	t.Run("Name", func(t *testing.T) {
		if svc := NewYouTubeService(""); svc.Name() != "YouTube Music" {
			t.Errorf("expected name to be 'YouTube Music', got %s", svc.Name())
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		svc := NewYouTubeService("")
		ctx := context.Background()

		t.Run("authenticates with auth_file", func(t *testing.T) {
			credentials := map[string]string{"auth_file": "/path/to/browser.json"}
			if err := svc.Authenticate(ctx, credentials); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if svc.authFile != credentials["auth_file"] {
				t.Errorf("expected authFile to be %s, got %s", credentials["auth_file"], svc.authFile)
			}
		})

		t.Run("fails without auth_file", func(t *testing.T) {
			if err := svc.Authenticate(ctx, map[string]string{}); err == nil {
				t.Fatal("expected error for missing auth_file")
			}
		})
	})

	t.Run("LibrarySongs", func(t *testing.T) {
		mockSongs := []map[string]any{
			{
				"videoId":   "vid1",
				"title":     "Around the World",
				"artists":   []map[string]any{{"name": "Daft Punk", "id": "art1"}, {"name": "Guest", "id": "art2"}},
				"album":     map[string]any{"name": "Homework", "id": "alb1"},
				"playCount": 12,
			},
			{
				"videoId": "vid2",
				"title":   "No Count",
				"artists": []map[string]any{{"name": "Air", "id": "art3"}},
				"album":   map[string]any{"name": "Moon Safari", "id": "alb2"},
			},
			{
				"videoId":     "vid3",
				"title":       "Gone",
				"artists":     []map[string]any{{"name": "Air", "id": "art3"}},
				"album":       map[string]any{"name": "Talkie Walkie", "id": "alb3"},
				"isAvailable": false,
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/library/songs" {
				t.Errorf("expected path /api/library/songs, got %s", r.URL.Path)
			}
			if r.Header.Get("X-Auth-File") != "/path/to/auth.json" {
				t.Errorf("expected X-Auth-File header")
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mockSongs)
		}))
		defer server.Close()

		svc := NewYouTubeService(server.URL)
		svc.authFile = "/path/to/auth.json"

		tracks, err := svc.LibrarySongs(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}

		if tracks[0].Artist != "Daft Punk" || tracks[0].Album != "Homework" || tracks[0].PlayCount != 12 {
			t.Errorf("unexpected first track: %+v", tracks[0])
		}
		if tracks[1].PlayCount != 1 {
			t.Errorf("expected missing play count to default to 1, got %d", tracks[1].PlayCount)
		}
		if tracks[1].Deleted {
			t.Error("expected track without availability flag to be kept")
		}
		if !tracks[2].Deleted {
			t.Error("expected unavailable track to be marked deleted")
		}
	})

	t.Run("GetPlaylists", func(t *testing.T) {
		mockPlaylists := []map[string]any{
			{"playlistId": "PL123", "title": "My Playlist", "privacy": "PUBLIC", "count": 10},
			{"playlistId": "PL456", "title": "Private Mix", "privacy": "PRIVATE", "count": 5},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/library/playlists" {
				t.Errorf("expected path /api/library/playlists, got %s", r.URL.Path)
			}
			if r.Method != http.MethodGet {
				t.Errorf("expected GET method, got %s", r.Method)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mockPlaylists)
		}))
		defer server.Close()

		playlists, err := NewYouTubeService(server.URL).GetPlaylists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "PL123" || playlists[0].Name != "My Playlist" || !playlists[0].Public {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if playlists[1].Public {
			t.Error("expected second playlist to be private")
		}
	})

	t.Run("ExportPlaylist", func(t *testing.T) {
		mockPlaylist := map[string]any{
			"id":         "PL123",
			"title":      "Export Test",
			"privacy":    "PRIVATE",
			"trackCount": 2,
			"tracks": []map[string]any{
				{
					"videoId":          "vid1",
					"title":            "Song 1",
					"artists":          []map[string]any{{"name": "Artist 1", "id": "art1"}},
					"album":            map[string]any{"name": "Album 1", "id": "alb1"},
					"duration_seconds": 180,
				},
				{
					"videoId":          "vid2",
					"title":            "Song 2",
					"artists":          []map[string]any{{"name": "Artist 2", "id": "art2"}},
					"duration_seconds": 240,
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/playlists/PL123" {
				t.Errorf("expected path /api/playlists/PL123, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(mockPlaylist)
		}))
		defer server.Close()

		export, err := NewYouTubeService(server.URL).ExportPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if export.Playlist.Name != "Export Test" {
			t.Errorf("expected playlist name 'Export Test', got %s", export.Playlist.Name)
		}
		if len(export.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(export.Tracks))
		}

		track1 := export.Tracks[0]
		if track1.ID != "vid1" || track1.Title != "Song 1" || track1.Artist != "Artist 1" || track1.Album != "Album 1" {
			t.Errorf("unexpected first track: %+v", track1)
		}
		if track1.Duration != 180 {
			t.Errorf("expected duration 180, got %d", track1.Duration)
		}
		if export.Tracks[1].Album != "" {
			t.Errorf("expected empty album for second track, got %s", export.Tracks[1].Album)
		}
	})

	t.Run("Error Handling", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			want   error
		}{
			{name: "401 unauthorized", status: http.StatusUnauthorized, want: shared.ErrAuthFailed},
			{name: "404 not found", status: http.StatusNotFound, want: shared.ErrAPIRequest},
			{name: "500 internal error", status: http.StatusInternalServerError, want: shared.ErrServiceUnavailable},
			{name: "429 rate limited", status: http.StatusTooManyRequests, want: shared.ErrRateLimited},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					json.NewEncoder(w).Encode(map[string]string{"detail": "proxy said no"})
				}))
				defer server.Close()

				_, err := NewYouTubeService(server.URL).GetPlaylists(context.Background())
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
			})
		}

		t.Run("unreachable proxy", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			url := server.URL
			server.Close()

			_, err := NewYouTubeService(url).LibrarySongs(context.Background())
			if !errors.Is(err, shared.ErrSourceUnavailable) {
				t.Fatalf("expected ErrSourceUnavailable, got %v", err)
			}
		})
	})
}
