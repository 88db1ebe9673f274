package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/server"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 2 * time.Minute

// AuthLogin performs an authorization code flow with PKCE and saves the refresh token to the config file.
//
// Starts a local HTTP server, opens the browser for user authorization, and exchanges the code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(shared.ModeLogin); err != nil {
		return err
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()

	handler := server.NewOAuthHandler(svc, state, verifier)
	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	srv, err := server.NewCallbackServer(addr, handler, r.logger)
	if err != nil {
		return err
	}

	authURL := svc.GetAuthURL(state, verifier)
	r.logger.Info("starting OAuth flow", "callback", srv.Addr())

	openBrowser := !cmd.Bool("no-browser")
	if openBrowser {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Open this URL in your browser to authorize likesync:\n\n%s\n\n", authURL)
	}
	r.writePlain("Waiting for authorization (timeout: %s)...\n", loginTimeout)

	result, err := srv.Wait(ctx, loginTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	if err := r.saveTokens(result.Token); err != nil {
		return err
	}

	r.writePlainln("%s Authorization successful", okMarker(""))
	r.writePlain("Refresh token saved to %s\n", r.configPath)
	return nil
}

// AuthToken exchanges the configured refresh token and reports the account and token expiry.
//
// Token values are never printed.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(shared.ModeLogin); err != nil {
		return err
	}
	configured, err := models.ParseCredential(r.config.Credentials.Spotify.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: SPOTIFY_REFRESH_TOKEN: %v", shared.ErrMissingConfig, err)
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	user, err := r.authenticate(ctx, svc)
	if err != nil {
		return err
	}

	token, err := svc.Token()
	if err != nil {
		return err
	}

	status := struct {
		User      string    `json:"user"`
		Display   string    `json:"display_name,omitempty"`
		Expiry    time.Time `json:"expiry,omitzero"`
		Rotated   bool      `json:"rotated"`
		ExpiresIn string    `json:"expires_in,omitempty"`
	}{
		User:    user.ID,
		Display: user.DisplayName,
		Expiry:  token.Expiry,
		Rotated: token.RefreshToken != "" && token.RefreshToken != configured.Token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		status.ExpiresIn = time.Until(token.Expiry).Round(time.Second).String()
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("User: %s\n", status.User)
	if status.Display != "" {
		r.writePlain("Name: %s\n", status.Display)
	}
	if status.ExpiresIn != "" {
		r.writePlain("Access token expires: %s (in %s)\n", status.Expiry.Local().Format(time.DateTime), status.ExpiresIn)
	}
	if status.Rotated {
		r.writePlain("%s\n", styles.warn.Render("Spotify issued a new refresh token; run 'likesync secrets publish' or 'likesync auth login' to keep it"))
	}
	return nil
}
