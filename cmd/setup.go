package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writeStatus(successStyle, "✓ Wrote %s", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [credentials.spotify] (or set SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Point [source] at your Takeout export or YouTube Music proxy\n")
	r.writePlain("3. Run: catalogx setup database && catalogx auth spotify\n")
	return nil
}

// SetupDatabase creates the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.cfg()
	r.logger.Info("initializing database", "path", config.Database.Path)

	if _, err := r.database(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writeStatus(successStyle, "✓ Database ready at %s", config.Database.Path)
}
