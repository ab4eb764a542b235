// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
)

// Catalog method names recorded by [MockCatalog].
const (
	CallSearch          = "Search"
	CallFindPlaylist    = "FindPlaylistByName"
	CallCreatePlaylist  = "CreatePlaylist"
	CallReplacePlaylist = "ReplacePlaylistTracks"
	CallAddPlaylist     = "AddPlaylistTracks"
	CallSaveAlbums      = "SaveAlbums"
	CallFollowArtists   = "FollowArtists"
)

// CatalogCall is one recorded invocation.
type CatalogCall struct {
	Method string
	Arg    string   // query, playlist name or playlist id
	URIs   []string // write payload
}

// MockCatalog is a test double for [services.Catalog].
//
// Search answers from SearchResults keyed by query. Each write pops the next entry of
// WriteErrs; a nil entry (or an empty queue) succeeds.
type MockCatalog struct {
	mu sync.Mutex

	SearchResults map[string][]services.SearchResult
	SearchErr     error
	Playlists     map[string]*services.RemotePlaylist
	WriteErrs     []error
	CreateErr     error

	Calls   []CatalogCall
	created int
}

// NewMockCatalog creates an empty [MockCatalog].
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		SearchResults: make(map[string][]services.SearchResult),
		Playlists:     make(map[string]*services.RemotePlaylist),
	}
}

// Answer registers a single-result response for query.
func (m *MockCatalog) Answer(query, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchResults[query] = []services.SearchResult{{URI: uri}}
}

func (m *MockCatalog) record(method, arg string, uris []string) {
	m.Calls = append(m.Calls, CatalogCall{Method: method, Arg: arg, URIs: slices.Clone(uris)})
}

func (m *MockCatalog) nextWriteErr() error {
	if len(m.WriteErrs) == 0 {
		return nil
	}
	err := m.WriteErrs[0]
	m.WriteErrs = m.WriteErrs[1:]
	return err
}

func (m *MockCatalog) Search(ctx context.Context, query string, kind services.SearchKind, limit int) ([]services.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallSearch, query, nil)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	results := m.SearchResults[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockCatalog) FindPlaylistByName(ctx context.Context, name string) (*services.RemotePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallFindPlaylist, name, nil)
	if pl, ok := m.Playlists[name]; ok {
		return pl, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, name string, public bool) (*services.RemotePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallCreatePlaylist, name, nil)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.created++
	pl := &services.RemotePlaylist{ID: fmt.Sprintf("created-%d", m.created), Name: name}
	m.Playlists[name] = pl
	return pl, nil
}

func (m *MockCatalog) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallReplacePlaylist, playlistID, uris)
	return m.nextWriteErr()
}

func (m *MockCatalog) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallAddPlaylist, playlistID, uris)
	return m.nextWriteErr()
}

func (m *MockCatalog) SaveAlbums(ctx context.Context, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallSaveAlbums, "", uris)
	return m.nextWriteErr()
}

func (m *MockCatalog) FollowArtists(ctx context.Context, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(CallFollowArtists, "", uris)
	return m.nextWriteErr()
}

// CallsTo returns the recorded calls of the given methods, in order.
func (m *MockCatalog) CallsTo(methods ...string) []CatalogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CatalogCall
	for _, c := range m.Calls {
		if slices.Contains(methods, c.Method) {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns every mutating call.
func (m *MockCatalog) Writes() []CatalogCall {
	return m.CallsTo(CallCreatePlaylist, CallReplacePlaylist, CallAddPlaylist, CallSaveAlbums, CallFollowArtists)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
