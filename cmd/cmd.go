// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/catalogx/internal/models"
	"github.com/urfave/cli/v3"
)

func reconcileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "add",
			Usage: "Write matches to Spotify (without it the run is a dry run)",
		},
		&cli.IntFlag{
			Name:  "start",
			Usage: "Source position to start from",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Start from the checkpoint of the last unfinished run",
		},
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "Ignore the cached source snapshot and fetch it again",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source catalog: takeout or ytmusic (overrides source.kind)",
		},
		&cli.StringFlag{
			Name:  "takeout-dir",
			Usage: "Google Takeout directory (overrides source.takeout_dir)",
		},
	}
}

// albumsCommand saves matched albums to the Spotify library
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "albums",
		Usage:  "Save every played album of the source library to Spotify",
		Flags:  reconcileFlags(),
		Action: r.Reconcile(models.KindAlbums),
	}
}

// artistsCommand follows matched artists on Spotify
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "artists",
		Usage:  "Follow every played artist of the source library on Spotify",
		Flags:  reconcileFlags(),
		Action: r.Reconcile(models.KindArtists),
	}
}

// playlistsCommand mirrors source playlists onto Spotify
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "playlists",
		Usage:  "Mirror every source playlist onto a same-named Spotify playlist",
		Flags:  append(reconcileFlags(), &cli.BoolFlag{Name: "public", Usage: "Create new playlists as public"}),
		Action: r.Reconcile(models.KindPlaylists),
	}
}

// authCommand handles Spotify authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage target catalog credentials",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize catalogx with Spotify using OAuth2",
				Action: r.AuthSpotify,
			},
			{
				Name:   "status",
				Usage:  "Show the cached Spotify token",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the cached Spotify token",
				Action: r.AuthLogout,
			},
		},
	}
}

// cacheCommand manages source snapshots
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached source snapshots",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show snapshot ages for the configured source",
				Action: r.CacheShow,
			},
			{
				Name:  "clear",
				Usage: "Delete snapshots so the next run fetches the source again",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Clear snapshots of every source account",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// runsCommand lists reconciliation history
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect reconciliation run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Only show albums, artists or playlists runs",
					},
				},
				Action: r.RunsList,
			},
		},
	}
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
