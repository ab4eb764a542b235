package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/formatter"
	"github.com/desertthunder/catalogx/internal/matcher"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/desertthunder/catalogx/internal/shared"
	tu "github.com/desertthunder/catalogx/internal/testing"
	"golang.org/x/oauth2"
)

type stubBackend struct {
	tracks    []models.Track
	playlists []models.Playlist
	fetches   int
}

func (s *stubBackend) FetchTracks(ctx context.Context) ([]models.Track, error) {
	s.fetches++
	return s.tracks, nil
}

func (s *stubBackend) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	s.fetches++
	return s.playlists, nil
}

type testEnv struct {
	runner  *Runner
	db      *sql.DB
	catalog *tu.MockCatalog
	backend *stubBackend
	output  *bytes.Buffer
	audit   *bytes.Buffer
}

func newTestEnv(t *testing.T, tracks []models.Track) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	config := shared.DefaultConfig()
	config.Source.Kind = shared.SourceTakeout
	config.Source.TakeoutDir = t.TempDir()
	config.Database.Path = filepath.Join(t.TempDir(), "catalogx.db")
	config.Credentials.Spotify = shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", Username: "tester"}

	env := &testEnv{
		db:      db,
		catalog: tu.NewMockCatalog(),
		backend: &stubBackend{tracks: tracks},
		output:  &bytes.Buffer{},
		audit:   &bytes.Buffer{},
	}
	env.runner = NewRunner(RunnerOpts{
		Config:  config,
		Logger:  shared.DiscardLogger(),
		Output:  env.output,
		Status:  io.Discard,
		DB:      db,
		Catalog: env.catalog,
		Backend: env.backend,
		Audit:   formatter.NewAuditLog(env.audit, nil),
		Sleep:   func(time.Duration) {},
	})
	return env
}

func (e *testEnv) run(args ...string) error {
	return e.runner.app().Run(context.Background(), append([]string{"catalogx"}, args...))
}

func (e *testEnv) runs(t *testing.T) []*models.Run {
	t.Helper()
	runs, err := repositories.NewRunRepository(e.db).List(nil)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	return runs
}

func albumTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		tracks[i] = models.Track{
			Title:     "Track",
			Artist:    fmt.Sprintf("Artist %d", i),
			Album:     fmt.Sprintf("Album %d", i),
			PlayCount: 2,
		}
	}
	return tracks
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := tu.NewMockCatalog()

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Catalog: catalog,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.status != os.Stderr {
				t.Error("expected status to default to os.Stderr")
			}
		})

		t.Run("with nil config falls back to defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.cfg() == nil {
				t.Error("expected default config")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\ndone\n" {
				t.Errorf("got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}

		for _, want := range []string{"albums", "artists", "playlists", "auth", "cache", "runs", "setup"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected %q command, got %v", want, names)
			}
		}
	})

	t.Run("before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			content := "[source]\nkind = \"takeout\"\ntakeout_dir = \"/music/takeout\"\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			env := newTestEnv(t, nil)
			env.runner.config = nil
			runner := env.runner
			if err := env.run("--config", path, "--verbose", "runs", "list"); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if runner.configPath != path {
				t.Errorf("configPath = %q, want %q", runner.configPath, path)
			}
			if runner.config == nil || runner.config.Source.TakeoutDir != "/music/takeout" {
				t.Errorf("config not loaded: %+v", runner.config)
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Errorf("log level = %v, want debug", runner.logger.GetLevel())
			}
		})
	})
}

func TestReconcile(t *testing.T) {
	t.Run("albums with add", func(t *testing.T) {
		tracks := albumTracks(3)
		env := newTestEnv(t, tracks)
		for i, tr := range tracks {
			env.catalog.Answer(matcher.AlbumQuery(tr.Artist, tr.Album), fmt.Sprintf("spotify:album:%d", i))
		}

		if err := env.run("albums", "--add"); err != nil {
			t.Fatalf("albums error = %v", err)
		}

		saves := env.catalog.CallsTo(tu.CallSaveAlbums)
		if len(saves) != 1 || len(saves[0].URIs) != 3 {
			t.Errorf("SaveAlbums calls = %+v", saves)
		}

		runs := env.runs(t)
		if len(runs) != 1 {
			t.Fatalf("runs = %d, want 1", len(runs))
		}
		if runs[0].Status() != models.RunStatusCompleted || runs[0].LastIndex() != 3 || !runs[0].Commit() {
			t.Errorf("run = status %s last %d commit %v", runs[0].Status(), runs[0].LastIndex(), runs[0].Commit())
		}
		if !strings.Contains(env.output.String(), "3 found, 0 skipped, 3 written") {
			t.Errorf("output missing summary:\n%s", env.output.String())
		}
		if got := strings.Count(env.audit.String(), "Found\t"); got != 3 {
			t.Errorf("audit Found lines = %d, want 3", got)
		}
	})

	t.Run("dry run by default", func(t *testing.T) {
		tracks := albumTracks(2)
		env := newTestEnv(t, tracks)
		env.catalog.Answer(matcher.AlbumQuery(tracks[0].Artist, tracks[0].Album), "spotify:album:0")

		if err := env.run("albums"); err != nil {
			t.Fatalf("albums error = %v", err)
		}
		if w := env.catalog.Writes(); len(w) != 0 {
			t.Errorf("dry run wrote: %+v", w)
		}
		if !strings.Contains(env.output.String(), "dry run") {
			t.Errorf("output missing dry run notice:\n%s", env.output.String())
		}
	})

	t.Run("snapshot is cached between runs", func(t *testing.T) {
		env := newTestEnv(t, albumTracks(2))

		for range 2 {
			if err := env.run("artists"); err != nil {
				t.Fatalf("artists error = %v", err)
			}
		}
		if env.backend.fetches != 1 {
			t.Errorf("backend fetches = %d, want 1", env.backend.fetches)
		}

		if err := env.run("artists", "--refresh"); err != nil {
			t.Fatalf("artists --refresh error = %v", err)
		}
		if env.backend.fetches != 2 {
			t.Errorf("backend fetches after refresh = %d, want 2", env.backend.fetches)
		}
	})

	t.Run("failed run resumes from checkpoint", func(t *testing.T) {
		tracks := albumTracks(60)
		env := newTestEnv(t, tracks)
		for i, tr := range tracks[5:] {
			env.catalog.Answer(matcher.AlbumQuery(tr.Artist, tr.Album), fmt.Sprintf("spotify:album:%d", i))
		}
		errBoom := errors.New("boom")
		env.catalog.WriteErrs = []error{errBoom}

		if err := env.run("albums", "--add"); !errors.Is(err, errBoom) {
			t.Fatalf("albums error = %v, want %v", err, errBoom)
		}

		runs := env.runs(t)
		if runs[0].Status() != models.RunStatusFailed || runs[0].LastIndex() != 5 || runs[0].ErrorMessage() == "" {
			t.Fatalf("failed run = status %s last %d error %q", runs[0].Status(), runs[0].LastIndex(), runs[0].ErrorMessage())
		}

		searchesBefore := len(env.catalog.CallsTo(tu.CallSearch))
		if err := env.run("albums", "--add", "--resume"); err != nil {
			t.Fatalf("resumed albums error = %v", err)
		}

		if n := len(env.catalog.CallsTo(tu.CallSearch)) - searchesBefore; n != 55 {
			t.Errorf("resumed searches = %d, want 55", n)
		}
		runs = env.runs(t)
		if runs[0].StartIndex() != 5 || runs[0].Status() != models.RunStatusCompleted || runs[0].LastIndex() != 60 {
			t.Errorf("resumed run = start %d status %s last %d", runs[0].StartIndex(), runs[0].Status(), runs[0].LastIndex())
		}
	})

	t.Run("committing resume ignores dry run checkpoint", func(t *testing.T) {
		tracks := albumTracks(10)
		env := newTestEnv(t, tracks)
		for i, tr := range tracks {
			env.catalog.Answer(matcher.AlbumQuery(tr.Artist, tr.Album), fmt.Sprintf("spotify:album:%d", i))
		}

		dry := models.NewRun(models.KindAlbums, env.runner.cfg().SourceAccount(), false, 0)
		runs := repositories.NewRunRepository(env.db)
		if err := runs.Create(dry); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		dry.Progress(6, 6, 0)
		dry.Fail(context.Canceled)
		if err := runs.Update(dry); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		if err := env.run("albums", "--add", "--resume"); err != nil {
			t.Fatalf("albums error = %v", err)
		}

		saves := env.catalog.CallsTo(tu.CallSaveAlbums)
		if len(saves) != 1 || len(saves[0].URIs) != 10 {
			t.Errorf("SaveAlbums calls = %+v, want one batch of 10", saves)
		}
		if latest := env.runs(t)[0]; latest.StartIndex() != 0 {
			t.Errorf("resumed run start = %d, want 0", latest.StartIndex())
		}
	})

	t.Run("auth requires a username", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.runner.config.Credentials.Spotify.Username = ""

		for _, args := range [][]string{{"auth", "spotify"}, {"auth", "status"}, {"auth", "logout"}} {
			if err := env.run(args...); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("%v error = %v, want %v", args, err, shared.ErrMissingCredentials)
			}
		}
	})

	t.Run("start and resume conflict", func(t *testing.T) {
		env := newTestEnv(t, albumTracks(1))
		if err := env.run("albums", "--start", "3", "--resume"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want %v", err, shared.ErrInvalidArgument)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		env := newTestEnv(t, albumTracks(1))
		if err := env.run("albums", "--source", "itunes"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("error = %v, want %v", err, shared.ErrInvalidConfig)
		}
	})

	t.Run("playlists", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backend.playlists = []models.Playlist{
			{Name: "Morning", Tracks: []models.Track{{Title: "Song", Artist: "Air", Album: "Moon Safari", PlayCount: 1}}},
		}
		env.catalog.Answer(matcher.TrackQuery("Song", "Air", "Moon Safari"), "spotify:track:1")

		if err := env.run("playlists", "--add"); err != nil {
			t.Fatalf("playlists error = %v", err)
		}
		if got := env.catalog.CallsTo(tu.CallCreatePlaylist, tu.CallReplacePlaylist); len(got) != 2 {
			t.Errorf("playlist writes = %+v", got)
		}
		if !strings.Contains(env.output.String(), "playlists: 1") {
			t.Errorf("output missing playlist count:\n%s", env.output.String())
		}
	})
}

func TestRunsList(t *testing.T) {
	env := newTestEnv(t, albumTracks(1))

	if err := env.run("runs", "list"); err != nil {
		t.Fatalf("runs list error = %v", err)
	}
	if !strings.Contains(env.output.String(), "No runs recorded yet.") {
		t.Errorf("output = %q", env.output.String())
	}

	if err := env.run("albums"); err != nil {
		t.Fatalf("albums error = %v", err)
	}
	env.output.Reset()

	if err := env.run("runs", "list", "--kind", "albums"); err != nil {
		t.Fatalf("runs list error = %v", err)
	}
	out := env.output.String()
	for _, want := range []string{"Kind", "albums", "dry run", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("runs list missing %q:\n%s", want, out)
		}
	}

	if err := env.run("runs", "list", "--kind", "songs"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCache(t *testing.T) {
	env := newTestEnv(t, albumTracks(1))

	if err := env.run("artists"); err != nil {
		t.Fatalf("artists error = %v", err)
	}

	env.output.Reset()
	if err := env.run("cache", "show"); err != nil {
		t.Fatalf("cache show error = %v", err)
	}
	if out := env.output.String(); strings.Count(out, "not cached") != 1 {
		t.Errorf("expected only the playlists snapshot to be missing:\n%s", out)
	}

	env.output.Reset()
	if err := env.run("cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	if !strings.Contains(env.output.String(), "Cleared 1 snapshot") {
		t.Errorf("cache clear output = %q", env.output.String())
	}
}

func TestAuthStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	if err := env.run("auth", "status"); err != nil {
		t.Fatalf("auth status error = %v", err)
	}
	if !strings.Contains(env.output.String(), "Not authenticated") {
		t.Errorf("output = %q", env.output.String())
	}

	svc, err := env.runner.newSpotifyService()
	if err != nil {
		t.Fatalf("newSpotifyService() error = %v", err)
	}
	token := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	if err := repositories.NewCredentialRepository(env.db).Save(providerSpotify, "tester", svc.Scope(), token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	env.output.Reset()
	if err := env.run("auth", "status"); err != nil {
		t.Fatalf("auth status error = %v", err)
	}
	out := env.output.String()
	if !strings.Contains(out, "Authenticated as tester") || !strings.Contains(out, "Refresh token: present") {
		t.Errorf("output = %q", out)
	}

	if err := env.run("auth", "logout"); err != nil {
		t.Fatalf("auth logout error = %v", err)
	}
	if _, err := repositories.NewCredentialRepository(env.db).Load(providerSpotify, "tester", svc.Scope()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("token still cached after logout: %v", err)
	}
}
