package main

import (
	"context"
	"errors"

	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/desertthunder/catalogx/internal/source"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// CacheShow prints when each snapshot of the configured source was taken.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	account := r.cfg().SourceAccount()
	repo := repositories.NewSnapshotRepository(db)

	r.writePlain("Source: %s\n", account)
	for _, kind := range []string{source.SnapshotLibrary, source.SnapshotPlaylists} {
		at, err := repo.SavedAt(account, kind)
		switch {
		case errors.Is(err, shared.ErrSnapshotNotFound):
			r.writePlain("  %-10s %s\n", kind, mutedStyle.Render("not cached"))
		case err != nil:
			return err
		default:
			r.writePlain("  %-10s cached %s\n", kind, humanize.Time(at))
		}
	}
	return nil
}

// CacheClear deletes snapshots so the next run reads the source again.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	account := r.cfg().SourceAccount()
	if cmd.Bool("all") {
		account = ""
	}

	n, err := repositories.NewSnapshotRepository(db).Clear(account)
	if err != nil {
		return err
	}

	r.logger.Info("cleared snapshots", "account", account, "count", n)
	return r.writeStatus(successStyle, "✓ Cleared %d snapshot(s)", n)
}
