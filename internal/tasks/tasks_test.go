package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/desertthunder/catalogx/internal/formatter"
	"github.com/desertthunder/catalogx/internal/matcher"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/desertthunder/catalogx/internal/source"
	tu "github.com/desertthunder/catalogx/internal/testing"
)

type stubSource struct {
	tracks    []models.Track
	playlists []models.Playlist
	err       error
}

func (s *stubSource) Library(ctx context.Context) (*source.Library, error) {
	if s.err != nil {
		return nil, s.err
	}
	return source.NewLibrary(s.tracks), nil
}

func (s *stubSource) Collection(ctx context.Context) (*source.Collection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return source.NewCollection(s.playlists), nil
}

func albumTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		tracks[i] = models.Track{
			Title:     "Intro",
			Artist:    fmt.Sprintf("Artist %d", i),
			Album:     fmt.Sprintf("Album %d", i),
			PlayCount: 1,
		}
	}
	return tracks
}

func answerAlbums(mock *tu.MockCatalog, tracks []models.Track) {
	for i, tr := range tracks {
		mock.Answer(matcher.AlbumQuery(tr.Artist, tr.Album), fmt.Sprintf("spotify:album:%d", i))
	}
}

func newTestReconciler(src Enumerator, mock *tu.MockCatalog) (*Reconciler, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewReconciler(src, mock, WithAuditor(formatter.NewAuditLog(&buf, nil)))
	return r, &buf
}

// auditLines drops the session header.
func auditLines(buf *bytes.Buffer) []string {
	var out []string
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, formatter.KindStarting) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func TestReconciler_Albums(t *testing.T) {
	t.Run("one flush of fifty one", func(t *testing.T) {
		tracks := albumTracks(51)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{Commit: true}, nil)
		if err != nil {
			t.Fatalf("Albums() error = %v", err)
		}

		writes := mock.CallsTo(tu.CallSaveAlbums)
		if len(writes) != 1 || len(writes[0].URIs) != 51 {
			t.Fatalf("SaveAlbums calls = %v", methodsOf(writes))
		}
		if result.Found != 51 || result.Written != 51 || result.LastIndex != 51 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("fifty matches flush at the end", func(t *testing.T) {
		tracks := albumTracks(50)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		if _, err := r.Albums(context.Background(), RunOptions{Commit: true}, nil); err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		writes := mock.CallsTo(tu.CallSaveAlbums)
		if len(writes) != 1 || len(writes[0].URIs) != 50 {
			t.Errorf("SaveAlbums calls = %v", methodsOf(writes))
		}
	})

	t.Run("dead first occurrence consumes the key", func(t *testing.T) {
		tracks := []models.Track{
			{Title: "Roads", Artist: "Portishead", Album: "Dummy", PlayCount: 0},
			{Title: "Sour Times", Artist: "Portishead", Album: "Dummy", PlayCount: 12},
		}
		mock := tu.NewMockCatalog()
		mock.Answer(matcher.AlbumQuery("Portishead", "Dummy"), "spotify:album:dummy")
		r, audit := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{Commit: true}, nil)
		if err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		if n := len(mock.CallsTo(tu.CallSearch)); n != 0 {
			t.Errorf("searches = %d, want 0", n)
		}
		if len(mock.Writes()) != 0 {
			t.Errorf("writes = %v, want none", methodsOf(mock.Writes()))
		}
		if lines := auditLines(audit); len(lines) != 0 {
			t.Errorf("audit lines = %q, want none", lines)
		}
		if result.Processed != 0 || result.LastIndex != 2 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("malformed rows are invisible", func(t *testing.T) {
		tracks := []models.Track{
			{Title: "No Album", Artist: "Cocteau Twins", PlayCount: 3},
			{Title: "Cherry-coloured Funk", Artist: "Cocteau Twins", Album: "Heaven or Las Vegas", PlayCount: 3},
		}
		mock := tu.NewMockCatalog()
		r, audit := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{Commit: true}, nil)
		if err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		want := []string{"Skipped\tCocteau Twins\tHeaven or Las Vegas"}
		if got := auditLines(audit); strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("audit lines = %q, want %q", got, want)
		}
		if result.Total != 1 || result.Skipped != 1 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("audit line formats", func(t *testing.T) {
		tracks := []models.Track{
			{Title: "a", Artist: "Broadcast", Album: "Tender Buttons", PlayCount: 1},
			{Title: "b", Artist: "Broadcast", Album: "Haha Sound", PlayCount: 1},
		}
		mock := tu.NewMockCatalog()
		mock.Answer(matcher.AlbumQuery("Broadcast", "Tender Buttons"), "spotify:album:tb")
		r, audit := newTestReconciler(&stubSource{tracks: tracks}, mock)

		if _, err := r.Albums(context.Background(), RunOptions{}, nil); err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		want := []string{
			"Found\tBroadcast\tTender Buttons\tspotify:album:tb",
			"Skipped\tBroadcast\tHaha Sound",
		}
		if got := auditLines(audit); strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("audit lines = %q, want %q", got, want)
		}
		if !strings.Contains(audit.String(), "Starting\talbums\t") {
			t.Errorf("audit missing header:\n%s", audit.String())
		}
	})

	t.Run("dry run does not write", func(t *testing.T) {
		tracks := albumTracks(120)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{}, nil)
		if err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		if len(mock.Writes()) != 0 {
			t.Errorf("writes = %v", methodsOf(mock.Writes()))
		}
		if result.Found != 120 || result.Written != 0 || result.Flushes != 3 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("resume skips processed positions", func(t *testing.T) {
		tracks := albumTracks(10)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{Commit: true, StartAt: 7}, nil)
		if err != nil {
			t.Fatalf("Albums() error = %v", err)
		}
		if n := len(mock.CallsTo(tu.CallSearch)); n != 3 {
			t.Errorf("searches = %d, want 3", n)
		}
		if result.LastIndex != 10 {
			t.Errorf("LastIndex = %d, want 10", result.LastIndex)
		}
	})

	t.Run("failed write keeps last checkpoint", func(t *testing.T) {
		tracks := albumTracks(60)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		errBoom := errors.New("boom")
		mock.WriteErrs = []error{errBoom}
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		result, err := r.Albums(context.Background(), RunOptions{Commit: true, StartAt: 2}, nil)
		if !errors.Is(err, errBoom) {
			t.Fatalf("Albums() error = %v, want %v", err, errBoom)
		}
		if result.LastIndex != 2 || result.Written != 0 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("search failure aborts", func(t *testing.T) {
		mock := tu.NewMockCatalog()
		mock.SearchErr = shared.ErrServiceUnavailable
		r, _ := newTestReconciler(&stubSource{tracks: albumTracks(3)}, mock)

		if _, err := r.Albums(context.Background(), RunOptions{Commit: true}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("Albums() error = %v, want %v", err, shared.ErrServiceUnavailable)
		}
	})
}

func TestReconciler_Artists(t *testing.T) {
	tracks := []models.Track{
		{Title: "a", Artist: "Slowdive", Album: "Souvlaki", PlayCount: 1},
		{Title: "b", Artist: "Slowdive", Album: "Pygmalion", PlayCount: 1},
		{Title: "c", Artist: "Ride", Album: "Nowhere", PlayCount: 1},
	}
	mock := tu.NewMockCatalog()
	mock.Answer(matcher.ArtistQuery("Slowdive"), "spotify:artist:slowdive")
	r, audit := newTestReconciler(&stubSource{tracks: tracks}, mock)

	result, err := r.Artists(context.Background(), RunOptions{Commit: true}, nil)
	if err != nil {
		t.Fatalf("Artists() error = %v", err)
	}

	want := []string{"Found\tSlowdive\tspotify:artist:slowdive", "Skipped\tRide"}
	if got := auditLines(audit); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("audit lines = %q, want %q", got, want)
	}
	follows := mock.CallsTo(tu.CallFollowArtists)
	if len(follows) != 1 || follows[0].URIs[0] != "spotify:artist:slowdive" {
		t.Errorf("FollowArtists calls = %v", methodsOf(follows))
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
}

func TestReconciler_Playlists(t *testing.T) {
	lists := []models.Playlist{
		{Name: "First", Tracks: playlistTracks(2)},
		{Name: "Empty"},
		{Name: "Second", Tracks: playlistTracks(1)},
	}

	t.Run("all playlists", func(t *testing.T) {
		mock := tu.NewMockCatalog()
		answerTracks(mock, playlistTracks(2))
		r, _ := newTestReconciler(&stubSource{playlists: lists}, mock)

		result, err := r.Playlists(context.Background(), RunOptions{Commit: true}, nil)
		if err != nil {
			t.Fatalf("Playlists() error = %v", err)
		}
		if result.Total != 2 || len(result.Playlists) != 2 || result.LastIndex != 2 {
			t.Errorf("result = %+v", result)
		}
		created := mock.CallsTo(tu.CallCreatePlaylist)
		if len(created) != 2 || created[0].Arg != "First" || created[1].Arg != "Second" {
			t.Errorf("CreatePlaylist calls = %v", methodsOf(created))
		}
	})

	t.Run("resume skips finished playlists", func(t *testing.T) {
		mock := tu.NewMockCatalog()
		answerTracks(mock, playlistTracks(2))
		r, _ := newTestReconciler(&stubSource{playlists: lists}, mock)

		result, err := r.Playlists(context.Background(), RunOptions{Commit: true, StartAt: 1}, nil)
		if err != nil {
			t.Fatalf("Playlists() error = %v", err)
		}
		created := mock.CallsTo(tu.CallCreatePlaylist)
		if len(created) != 1 || created[0].Arg != "Second" {
			t.Errorf("CreatePlaylist calls = %v", methodsOf(created))
		}
		if result.LastIndex != 2 {
			t.Errorf("LastIndex = %d, want 2", result.LastIndex)
		}
	})
}

func TestReconciler_Run(t *testing.T) {
	t.Run("source failure", func(t *testing.T) {
		r, _ := newTestReconciler(&stubSource{err: shared.ErrSourceUnavailable}, tu.NewMockCatalog())
		for _, kind := range []models.Kind{models.KindAlbums, models.KindArtists, models.KindPlaylists} {
			if _, err := r.Run(context.Background(), kind, RunOptions{}, nil); !errors.Is(err, shared.ErrSourceUnavailable) {
				t.Errorf("Run(%s) error = %v, want %v", kind, err, shared.ErrSourceUnavailable)
			}
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		r, _ := newTestReconciler(&stubSource{}, tu.NewMockCatalog())
		if _, err := r.Run(context.Background(), models.Kind("songs"), RunOptions{}, nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Run() error = %v, want %v", err, shared.ErrInvalidArgument)
		}
	})

	t.Run("progress updates", func(t *testing.T) {
		tracks := albumTracks(3)
		mock := tu.NewMockCatalog()
		answerAlbums(mock, tracks)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, mock)

		progress := make(chan ProgressUpdate, 16)
		if _, err := r.Run(context.Background(), models.KindAlbums, RunOptions{}, progress); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		close(progress)

		var phases []string
		for u := range progress {
			phases = append(phases, u.Phase.String())
		}
		want := "load_source match match match complete"
		if got := strings.Join(phases, " "); got != want {
			t.Errorf("phases = %s, want %s", got, want)
		}
	})

	t.Run("full progress channel never blocks", func(t *testing.T) {
		tracks := albumTracks(5)
		r, _ := newTestReconciler(&stubSource{tracks: tracks}, tu.NewMockCatalog())
		progress := make(chan ProgressUpdate)
		if _, err := r.Run(context.Background(), models.KindAlbums, RunOptions{}, progress); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	})
}
