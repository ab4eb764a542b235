package tasks

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/formatter"
	"github.com/desertthunder/catalogx/internal/matcher"
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/desertthunder/catalogx/internal/source"
)

// Auditor receives one line per matched or skipped entity. [formatter.AuditLog] implements it.
type Auditor interface {
	Header(op string)
	Found(uri string, fields ...string)
	Skipped(fields ...string)
	PlaylistFound(name, id string)
	CreatingPlaylist(name string)
	Adding(uri string, fields ...string)
}

// EntityMatcher resolves source entities to target URIs. [matcher.Matcher] implements it.
type EntityMatcher interface {
	MatchAlbum(ctx context.Context, artist, album string) (models.MatchResult, error)
	MatchArtist(ctx context.Context, artist string) (models.MatchResult, error)
	MatchTrack(ctx context.Context, title, artist, album string) (models.MatchResult, error)
}

// Enumerator supplies the source library and playlists. [source.Enumerator] implements it.
type Enumerator interface {
	Library(ctx context.Context) (*source.Library, error)
	Collection(ctx context.Context) (*source.Collection, error)
}

// RunOptions controls a single pass.
type RunOptions struct {
	Commit  bool // perform writes; false is a dry run
	StartAt int  // source position to resume from
}

// RunResult reports what a pass did.
//
// LastIndex is the source position up to which every matched entity has been written
// (or discarded, in a dry run). A pass that completes sets it to Total.
type RunResult struct {
	Kind      models.Kind
	Total     int
	Processed int
	Found     int
	Skipped   int
	Written   int
	Flushes   int
	Playlists []*PlaylistResult
	LastIndex int
}

// Reconciler runs the albums, artists and playlists passes against a target catalog.
type Reconciler struct {
	source  Enumerator
	catalog services.Catalog
	matcher EntityMatcher
	audit   Auditor
	logger  *log.Logger
	sleep   func(time.Duration)
	public  bool
}

// ReconcilerOption configures a [Reconciler].
type ReconcilerOption func(*Reconciler)

// WithAuditor sets the audit sink. The default discards every line.
func WithAuditor(a Auditor) ReconcilerOption {
	return func(r *Reconciler) {
		if a != nil {
			r.audit = a
		}
	}
}

// WithMatcher replaces the default matcher built on the catalog.
func WithMatcher(m EntityMatcher) ReconcilerOption {
	return func(r *Reconciler) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithLogger sets the reconciler logger.
func WithLogger(l *log.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBackoffSleep replaces the sleep used between rate-limited playlist writes.
func WithBackoffSleep(fn func(time.Duration)) ReconcilerOption {
	return func(r *Reconciler) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithPublicPlaylists makes newly created playlists public.
func WithPublicPlaylists(public bool) ReconcilerOption {
	return func(r *Reconciler) { r.public = public }
}

// NewReconciler creates a [Reconciler] reading from src and writing to catalog.
func NewReconciler(src Enumerator, catalog services.Catalog, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		source:  src,
		catalog: catalog,
		audit:   formatter.Discard(),
		logger:  shared.DiscardLogger(),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.matcher == nil {
		r.matcher = matcher.New(catalog, r.logger)
	}
	return r
}

// Run dispatches to the pass for kind.
func (r *Reconciler) Run(ctx context.Context, kind models.Kind, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	switch kind {
	case models.KindAlbums:
		return r.Albums(ctx, opts, progress)
	case models.KindArtists:
		return r.Artists(ctx, opts, progress)
	case models.KindPlaylists:
		return r.Playlists(ctx, opts, progress)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", shared.ErrInvalidArgument, kind)
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (r *Reconciler) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// libraryPass describes the parts of the albums and artists passes that differ.
type libraryPass struct {
	kind      models.Kind
	key       KeyFunc
	threshold int
	match     func(ctx context.Context, t models.Track) (models.MatchResult, error)
	fields    func(t models.Track) []string
	write     WriteFunc
}

// Albums saves every live, deduplicated (artist, album) pair that matches in the target catalog.
func (r *Reconciler) Albums(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	return r.runLibrary(ctx, libraryPass{
		kind:      models.KindAlbums,
		key:       models.AlbumKey,
		threshold: AlbumBatchSize,
		match: func(ctx context.Context, t models.Track) (models.MatchResult, error) {
			return r.matcher.MatchAlbum(ctx, t.Artist, t.Album)
		},
		fields: func(t models.Track) []string { return []string{t.Artist, t.Album} },
		write:  r.catalog.SaveAlbums,
	}, opts, progress)
}

// Artists follows every live, deduplicated artist that matches in the target catalog.
func (r *Reconciler) Artists(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	return r.runLibrary(ctx, libraryPass{
		kind:      models.KindArtists,
		key:       models.ArtistKey,
		threshold: ArtistBatchSize,
		match: func(ctx context.Context, t models.Track) (models.MatchResult, error) {
			return r.matcher.MatchArtist(ctx, t.Artist)
		},
		fields: func(t models.Track) []string { return []string{t.Artist} },
		write:  r.catalog.FollowArtists,
	}, opts, progress)
}

func (r *Reconciler) runLibrary(ctx context.Context, pass libraryPass, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	logger := r.logger.With("op", pass.kind)

	r.sendProgress(progress, loadSourceUpdate(pass.kind))
	lib, err := r.source.Library(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Kind: pass.kind, Total: lib.Len(), LastIndex: opts.StartAt}
	r.audit.Header(pass.kind.String())
	logger.Info("starting pass", "tracks", result.Total, "start", opts.StartAt, "commit", opts.Commit)

	writer := NewBatchWriter(pass.threshold, opts.Commit, pass.write, WithBatchLogger(logger))
	pos := opts.StartAt

	for t := range Live(Dedup(counted(source.Skip(lib.Tracks(), opts.StartAt), &pos), pass.key)) {
		if err := ctx.Err(); err != nil {
			return r.finish(result, writer), err
		}
		result.Processed++

		m, err := pass.match(ctx, t)
		if err != nil {
			return r.finish(result, writer), err
		}

		if m.Found() {
			r.audit.Found(m.URI, pass.fields(t)...)
			result.Found++
			flushed, err := writer.Offer(ctx, m.URI)
			if err != nil {
				return r.finish(result, writer), fmt.Errorf("%s write failed: %w", pass.kind, err)
			}
			if flushed {
				r.sendProgress(progress, writeUpdate(pass.kind, writer.Flushes(), writer.Written()))
			}
		} else {
			r.audit.Skipped(pass.fields(t)...)
			result.Skipped++
		}

		if writer.Len() == 0 {
			result.LastIndex = pos
		}
		r.sendProgress(progress, matchUpdate(pos, result.Total, t, m))
	}

	if err := writer.Flush(ctx); err != nil {
		return r.finish(result, writer), fmt.Errorf("%s write failed: %w", pass.kind, err)
	}
	result.LastIndex = result.Total
	r.finish(result, writer)
	r.sendProgress(progress, completeUpdate(result))
	logger.Info("pass complete", "found", result.Found, "skipped", result.Skipped, "written", result.Written)
	return result, nil
}

// Playlists mirrors every source playlist, in source order, starting at opts.StartAt.
func (r *Reconciler) Playlists(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*RunResult, error) {
	logger := r.logger.With("op", models.KindPlaylists)

	r.sendProgress(progress, loadSourceUpdate(models.KindPlaylists))
	coll, err := r.source.Collection(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Kind: models.KindPlaylists, Total: coll.Len(), LastIndex: opts.StartAt}
	r.audit.Header(models.KindPlaylists.String())
	logger.Info("starting pass", "playlists", result.Total, "start", opts.StartAt, "commit", opts.Commit)

	sync := NewPlaylistSynchronizer(r.catalog, r.matcher, r.audit, opts.Commit)
	sync.public = r.public
	sync.sleep = r.sleep
	sync.logger = logger

	pos := opts.StartAt
	for pl := range source.Skip(coll.Playlists(), opts.StartAt) {
		pos++
		r.sendProgress(progress, syncPlaylistUpdate(pos, result.Total, pl))

		pr, err := sync.Sync(ctx, pl)
		if pr != nil {
			result.Playlists = append(result.Playlists, pr)
			result.Processed += pr.Processed
			result.Found += pr.Found
			result.Skipped += pr.Skipped
			result.Written += pr.Written
			result.Flushes += pr.Flushes
		}
		if err != nil {
			return result, err
		}
		result.LastIndex = pos
	}

	r.sendProgress(progress, completeUpdate(result))
	logger.Info("pass complete", "found", result.Found, "skipped", result.Skipped, "written", result.Written)
	return result, nil
}

func (r *Reconciler) finish(result *RunResult, writer *BatchWriter) *RunResult {
	result.Written = writer.Written()
	result.Flushes = writer.Flushes()
	return result
}

// counted advances *pos for every element seq yields, before dedup and liveness see it.
func counted[T any](seq iter.Seq[T], pos *int) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range seq {
			*pos++
			if !yield(v) {
				return
			}
		}
	}
}
