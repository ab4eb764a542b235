package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/catalogx/internal/repositories"
	"github.com/desertthunder/catalogx/internal/server"
	"github.com/desertthunder/catalogx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthSpotify performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local callback server, opens the browser for user authorization and caches the
// resulting token keyed by the Spotify username and the requested scope.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	config := r.cfg()
	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment", shared.ErrMissingCredentials, r.configPath)
	}
	account, err := r.spotifyAccount()
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(svc, state)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv, err := server.Listen(addr, handler, shared.WithLogger(r.logger, "component", "oauth"))
	if err != nil {
		return err
	}

	authURL := svc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.browser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writeStatus(warnStyle, "⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	token, err := srv.Wait(ctx, authTimeout)
	if err != nil {
		return err
	}

	creds := repositories.NewCredentialRepository(db)
	if err := creds.Save(providerSpotify, account, svc.Scope(), token); err != nil {
		return err
	}

	r.writeStatus(successStyle, "✓ Authorization successful")
	r.writePlain("✓ Token cached for Spotify user %s\n\n", account)
	r.writePlain("You can now use: catalogx albums\n")
	return nil
}

// AuthStatus reports whether a token is cached for the configured Spotify user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	account, err := r.spotifyAccount()
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return err
	}

	token, err := repositories.NewCredentialRepository(db).Load(providerSpotify, account, svc.Scope())
	if errors.Is(err, shared.ErrNotFound) {
		r.writeStatus(warnStyle, "✗ Not authenticated as %q", account)
		return r.writePlain("Run: catalogx auth spotify\n")
	}
	if err != nil {
		return err
	}

	r.writeStatus(successStyle, "✓ Authenticated as %s", account)
	if !token.Expiry.IsZero() {
		verb := "expires"
		if token.Expiry.Before(time.Now()) {
			verb = "expired"
		}
		r.writePlain("Access token %s %s\n", verb, humanize.Time(token.Expiry))
	}
	if token.RefreshToken != "" {
		r.writePlain("Refresh token: present\n")
	} else {
		r.writePlain("Refresh token: missing, re-run catalogx auth spotify when the access token expires\n")
	}
	return nil
}

// AuthLogout deletes the cached token for the configured Spotify user.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	account, err := r.spotifyAccount()
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	if err := repositories.NewCredentialRepository(db).Delete(providerSpotify, account); err != nil {
		return err
	}
	return r.writeStatus(successStyle, "✓ Removed cached Spotify token for %q", account)
}

// spotifyAccount is the username tokens are cached under. Every auth subcommand and the
// reconcile commands key on it, so it must be configured before authorizing.
func (r *Runner) spotifyAccount() (string, error) {
	account := r.cfg().Credentials.Spotify.Username
	if account == "" {
		return "", fmt.Errorf("%w: credentials.spotify.username (or SPOTIFY_USERNAME) must be set", shared.ErrMissingCredentials)
	}
	return account, nil
}
