package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/shared"
)

// Takeout column headers.
const (
	colTitle     = "Title"
	colAlbum     = "Album"
	colArtist    = "Artist"
	colPlayCount = "Play Count"
	colRemoved   = "Removed"
)

// thumbsUp is the auto-generated playlist of liked tracks, which is never reconciled.
const thumbsUp = "thumbs up"

// Takeout reads a Google Play Music takeout export:
//
//	<dir>/Tracks/*.csv                       one track per file
//	<dir>/Playlists/<name>/Metadata.csv      playlist title
//	<dir>/Playlists/<name>/Tracks/*.csv      one playlist entry per file
type Takeout struct {
	dir    string
	logger *log.Logger
}

// NewTakeout creates a [Backend] over the export rooted at dir.
func NewTakeout(dir string, logger *log.Logger) *Takeout {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Takeout{dir: dir, logger: logger}
}

// FetchTracks reads every track file in the library. Files marked removed or that
// cannot be parsed are skipped.
func (t *Takeout) FetchTracks(ctx context.Context) ([]models.Track, error) {
	return t.readTracksDir(ctx, filepath.Join(t.dir, "Tracks"))
}

// FetchPlaylists reads every playlist directory except dotfiles and Thumbs Up.
func (t *Takeout) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	root := filepath.Join(t.dir, "Playlists")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlists directory: %w", err)
	}

	var lists []models.Playlist
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || strings.EqualFold(name, thumbsUp) {
			continue
		}

		dir := filepath.Join(root, name)
		title, ok := t.playlistTitle(filepath.Join(dir, "Metadata.csv"))
		if !ok {
			t.logger.Debug("skipping playlist without metadata", "dir", name)
			continue
		}

		tracks, err := t.readTracksDir(ctx, filepath.Join(dir, "Tracks"))
		if err != nil {
			t.logger.Debug("skipping playlist without tracks", "dir", name, "error", err)
			continue
		}

		lists = append(lists, models.Playlist{Name: title, Tracks: tracks})
	}
	return lists, nil
}

func (t *Takeout) readTracksDir(ctx context.Context, dir string) ([]models.Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	tracks := make([]models.Track, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		track, ok, err := readTrackFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.logger.Debug("skipping unreadable track file", "file", entry.Name(), "error", err)
			continue
		}
		if ok {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

func (t *Takeout) playlistTitle(path string) (string, bool) {
	rows, err := readRows(path)
	if err != nil || len(rows) == 0 {
		return "", false
	}
	title := rows[0][colTitle]
	return title, title != ""
}

// readTrackFile parses the first data row of a takeout track file. ok is false when the
// row is marked removed or lacks a title, album or artist.
func readTrackFile(path string) (models.Track, bool, error) {
	rows, err := readRows(path)
	if err != nil {
		return models.Track{}, false, err
	}
	if len(rows) == 0 {
		return models.Track{}, false, nil
	}

	row := rows[0]
	if strings.EqualFold(strings.TrimSpace(row[colRemoved]), "yes") {
		return models.Track{}, false, nil
	}

	track := models.Track{
		Title:     row[colTitle],
		Album:     row[colAlbum],
		Artist:    row[colArtist],
		PlayCount: parsePlayCount(row[colPlayCount]),
	}
	return track, track.Valid(), nil
}

// readRows reads a CSV file with a header line into maps keyed by column name.
// Values are HTML-unescaped because the export encodes entities such as &amp;.
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = html.UnescapeString(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parsePlayCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
