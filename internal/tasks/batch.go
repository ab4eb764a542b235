package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
)

const (
	AlbumBatchSize    = 50
	ArtistBatchSize   = 50
	PlaylistBatchSize = 100

	maxRetryAfter  = 120 * time.Second
	defaultBackoff = 30 * time.Second
)

// WriteFunc sends one batch of URIs to the target catalog.
type WriteFunc func(ctx context.Context, uris []string) error

// Backoff returns how long to wait after a rate-limited write. A present hint below 120s is
// used as is, zero included; anything else falls back to 30s.
func Backoff(retryAfter time.Duration, present bool) time.Duration {
	if present && retryAfter >= 0 && retryAfter < maxRetryAfter {
		return retryAfter
	}
	return defaultBackoff
}

// BatchWriter accumulates URIs and flushes them through a [WriteFunc].
//
// By default a flush happens once the batch grows past the threshold, so a flush carries
// threshold+1 URIs. [FlushAtCapacity] flushes as soon as the batch reaches the threshold instead.
// When commit is false the batch is cleared without calling write.
type BatchWriter struct {
	threshold  int
	commit     bool
	write      WriteFunc
	atCapacity bool
	retry      bool
	sleep      func(time.Duration)
	logger     *log.Logger

	batch   []string
	flushes int
	written int
}

// BatchOption configures a [BatchWriter].
type BatchOption func(*BatchWriter)

// FlushAtCapacity flushes when the batch holds exactly threshold URIs.
func FlushAtCapacity() BatchOption {
	return func(b *BatchWriter) { b.atCapacity = true }
}

// WithRateLimitRetry retries a rate-limited write exactly once after [Backoff].
func WithRateLimitRetry() BatchOption {
	return func(b *BatchWriter) { b.retry = true }
}

// WithSleep replaces [time.Sleep] for the backoff wait.
func WithSleep(fn func(time.Duration)) BatchOption {
	return func(b *BatchWriter) {
		if fn != nil {
			b.sleep = fn
		}
	}
}

// WithBatchLogger sets the logger used for flush and retry messages.
func WithBatchLogger(l *log.Logger) BatchOption {
	return func(b *BatchWriter) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBatchWriter creates a [BatchWriter]. write is only invoked when commit is true.
func NewBatchWriter(threshold int, commit bool, write WriteFunc, opts ...BatchOption) *BatchWriter {
	b := &BatchWriter{
		threshold: threshold,
		commit:    commit,
		write:     write,
		sleep:     time.Sleep,
		logger:    shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.batch = make([]string, 0, threshold+1)
	return b
}

// Offer appends uri and flushes when the threshold is hit. It reports whether a flush happened.
func (b *BatchWriter) Offer(ctx context.Context, uri string) (bool, error) {
	b.batch = append(b.batch, uri)
	if !b.full() {
		return false, nil
	}
	if err := b.Flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (b *BatchWriter) full() bool {
	if b.atCapacity {
		return len(b.batch) >= b.threshold
	}
	return len(b.batch) > b.threshold
}

// Flush sends whatever is buffered. An empty batch is a no-op.
// A failed write leaves the batch in place.
func (b *BatchWriter) Flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}

	if b.commit {
		if err := b.send(ctx, b.batch); err != nil {
			return err
		}
		b.written += len(b.batch)
		b.logger.Debug("flushed batch", "size", len(b.batch), "written", b.written)
	} else {
		b.logger.Debug("dry run, discarding batch", "size", len(b.batch))
	}

	b.flushes++
	b.batch = make([]string, 0, b.threshold+1)
	return nil
}

func (b *BatchWriter) send(ctx context.Context, uris []string) error {
	err := b.write(ctx, uris)
	if err == nil || !b.retry {
		return err
	}

	var rl *services.RateLimitError
	if !errors.As(err, &rl) {
		return err
	}

	wait := Backoff(rl.RetryAfter, rl.HasRetryAfter)
	b.logger.Warn("rate limited, retrying once", "wait", wait, "size", len(uris))
	b.sleep(wait)

	if err := b.write(ctx, uris); err != nil {
		return fmt.Errorf("write failed after rate limit retry: %w", err)
	}
	return nil
}

// Len is the number of buffered URIs.
func (b *BatchWriter) Len() int { return len(b.batch) }

// Flushes counts completed flushes, including dry-run discards.
func (b *BatchWriter) Flushes() int { return b.flushes }

// Written counts URIs accepted by the target catalog.
func (b *BatchWriter) Written() int { return b.written }
