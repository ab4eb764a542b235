package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/formatter"
	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/desertthunder/catalogx/internal/services"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/desertthunder/catalogx/internal/source"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const providerSpotify = "spotify"

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E22134")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil in [RunnerOpts] are built from the resolved config on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	status     io.Writer
	db         *sql.DB
	ownsDB     bool
	catalog    services.Catalog
	backend    source.Backend
	audit      *formatter.AuditLog
	sleep      func(time.Duration)
	browser    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Status     io.Writer // progress lines; defaults to stderr
	DB         *sql.DB
	Catalog    services.Catalog
	Backend    source.Backend
	Audit      *formatter.AuditLog
	Sleep      func(time.Duration)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		status:     opts.Status,
		db:         opts.DB,
		catalog:    opts.Catalog,
		backend:    opts.Backend,
		audit:      opts.Audit,
		sleep:      opts.Sleep,
		browser:    shared.OpenBrowser,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "catalogx",
		Usage:   "Reconcile a YouTube Music library with Spotify",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		albumsCommand, artistsCommand, playlistsCommand, authCommand, cacheCommand, runsCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before resolves the config once and applies --verbose.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.config != nil {
		return ctx, nil
	}

	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.configPath = path
	return ctx, nil
}

// cfg returns the resolved config, falling back to defaults.
func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
		r.config.ApplyEnv()
	}
	return r.config
}

// Close flushes the audit log and releases the database when the runner opened it.
func (r *Runner) Close() error {
	var errs []error
	if r.audit != nil {
		errs = append(errs, r.audit.Close())
	}
	if r.db != nil && r.ownsDB {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.cfg().Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run `catalogx setup database` first?): %w", err)
	}
	r.db = db
	r.ownsDB = true
	return db, nil
}

// spotify builds an authenticated client from the cached token. Refreshed tokens are written back.
func (r *Runner) spotify(ctx context.Context, db *sql.DB) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	config := r.cfg()
	svc, err := r.newSpotifyService()
	if err != nil {
		return nil, err
	}

	creds := repositories.NewCredentialRepository(db)
	account := config.Credentials.Spotify.Username
	token, err := creds.Load(providerSpotify, account, svc.Scope())
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: no Spotify token for %q, run `catalogx auth spotify`", shared.ErrNotAuthenticated, account)
	}
	if err != nil {
		return nil, err
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := creds.Save(providerSpotify, account, svc.Scope(), t); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
			return
		}
		r.logger.Debug("persisted refreshed token", "expiry", t.Expiry)
	})
	svc.SetToken(ctx, token)

	r.catalog = svc
	return svc, nil
}

func (r *Runner) newSpotifyService() (*services.SpotifyService, error) {
	config := r.cfg()
	return services.NewSpotifyService(
		config.Credentials.Spotify.Map(),
		services.WithRequestsPerSecond(config.Sync.RequestsPerSecond),
		services.WithSpotifyLogger(shared.WithLogger(r.logger, "service", providerSpotify)),
	)
}

// sourceBackend returns the backend selected by source.kind.
func (r *Runner) sourceBackend(ctx context.Context) (source.Backend, error) {
	if r.backend != nil {
		return r.backend, nil
	}

	config := r.cfg()
	logger := shared.WithLogger(r.logger, "source", config.Source.Kind)

	switch config.Source.Kind {
	case shared.SourceTakeout:
		return source.NewTakeout(config.Source.TakeoutDir, logger), nil
	case shared.SourceYTMusic:
		yt := services.NewYouTubeService(config.Credentials.YouTube.ProxyURL)
		if path := config.Credentials.YouTube.HeadersPath; path != "" {
			if err := yt.Authenticate(ctx, map[string]string{"auth_file": path}); err != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
			}
		}
		return source.NewYTMusic(yt, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", shared.ErrInvalidConfig, config.Source.Kind)
	}
}

func (r *Runner) auditLog() *formatter.AuditLog {
	if r.audit == nil {
		r.audit = formatter.NewAuditFile(r.cfg().Audit, r.logger)
	}
	return r.audit
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeStatus(style lipgloss.Style, format string, args ...any) error {
	return r.writePlain("%s\n", style.Render(fmt.Sprintf(format, args...)))
}
