package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/desertthunder/catalogx/internal/models"
	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/desertthunder/catalogx/internal/source"
	"github.com/desertthunder/catalogx/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Reconcile returns the action for one entity kind.
//
// It records a run before starting and updates it with the pass checkpoint afterwards, so a
// failed or interrupted pass can be picked up with --resume.
func (r *Runner) Reconcile(kind models.Kind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		config := r.cfg()
		if s := cmd.String("source"); s != "" {
			config.Source.Kind = s
		}
		if dir := cmd.String("takeout-dir"); dir != "" {
			config.Source.Kind = shared.SourceTakeout
			config.Source.TakeoutDir = dir
		}
		if cmd.IsSet("public") {
			config.Sync.PublicPlaylists = cmd.Bool("public")
		}
		if err := config.Validate(); err != nil {
			return err
		}

		if cmd.IsSet("start") && cmd.Bool("resume") {
			return fmt.Errorf("%w: --start and --resume cannot be combined", shared.ErrInvalidArgument)
		}
		start := cmd.Int("start")
		if start < 0 {
			return fmt.Errorf("%w: --start must not be negative", shared.ErrInvalidArgument)
		}
		commit := cmd.Bool("add")

		lock, err := shared.AcquireLock(config.LockPath())
		if err != nil {
			return err
		}
		defer lock.Release()

		db, err := r.database()
		if err != nil {
			return err
		}

		catalog, err := r.spotify(ctx, db)
		if err != nil {
			return err
		}

		backend, err := r.sourceBackend(ctx)
		if err != nil {
			return err
		}

		account := config.SourceAccount()
		enumerator := source.NewEnumerator(backend, account,
			source.WithCache(repositories.NewSnapshotRepository(db)),
			source.WithRefresh(cmd.Bool("refresh")),
			source.WithLogger(shared.WithLogger(r.logger, "account", account)),
		)

		runs := repositories.NewRunRepository(db)
		if cmd.Bool("resume") {
			if start, err = runs.ResumePoint(kind, account, commit); err != nil {
				return err
			}
			r.logger.Info("resuming", "op", kind, "start", start)
		}

		run := models.NewRun(kind, account, commit, start)
		if err := runs.Create(run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}

		audit := r.auditLog()
		reconciler := tasks.NewReconciler(enumerator, catalog,
			tasks.WithAuditor(audit),
			tasks.WithLogger(shared.WithLogger(r.logger, "run", run.Sequence())),
			tasks.WithBackoffSleep(r.sleep),
			tasks.WithPublicPlaylists(config.Sync.PublicPlaylists),
		)

		mode := "dry run"
		if commit {
			mode = "adding to Spotify"
		}
		r.writeStatus(headerStyle, "%s! (%s, run #%d, from position %d)", kind, mode, run.Sequence(), start)

		progress := make(chan tasks.ProgressUpdate, 64)
		done := make(chan struct{})
		go r.printProgress(progress, done)

		result, runErr := reconciler.Run(ctx, kind, tasks.RunOptions{Commit: commit, StartAt: start}, progress)
		close(progress)
		<-done

		if result != nil {
			run.Progress(result.LastIndex, result.Found, result.Skipped)
		}
		if runErr != nil {
			run.Fail(runErr)
		} else {
			run.Complete()
		}
		if err := runs.Update(run); err != nil {
			r.logger.Warn("failed to update run", "run", run.ID(), "error", err)
		}

		if runErr != nil {
			r.writeStatus(errorStyle, "✗ %s stopped at position %d, rerun with --resume to continue", kind, run.LastIndex())
			return runErr
		}

		r.writeStatus(successStyle, "✓ %s: %d found, %d skipped, %d written", kind, result.Found, result.Skipped, result.Written)
		if kind == models.KindPlaylists {
			r.writePlain("  playlists: %d\n", len(result.Playlists))
		}
		if !commit {
			r.writeStatus(warnStyle, "dry run: nothing was written to Spotify, rerun with --add")
		}
		if path := audit.Path(); path != "" {
			r.writeStatus(mutedStyle, "audit log: %s", path)
		}
		return nil
	}
}

// printProgress drains progress. Per-entity lines are only shown on a terminal; otherwise
// they go to the debug log.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)

	interactive := isTerminal(r.status)
	for u := range progress {
		if u.Phase == tasks.MatchEntities && !interactive {
			r.logger.Debug(u.Message, "phase", u.Phase)
			continue
		}
		fmt.Fprintln(r.status, mutedStyle.Render(u.Message))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
