package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"albumsync/internal/server"
	"albumsync/internal/services"
	"albumsync/internal/shared"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// oauthTimeout bounds how long the login command waits for the browser
// round-trip before giving up.
const oauthTimeout = 2 * time.Minute

// AuthLogin runs the OAuth2 authorization code flow for Google Photos and
// caches the resulting token on disk. A loopback listener on the redirect URI
// receives the authorization code; when the listener cannot bind, the command
// falls back to manual code entry.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	svc, err := services.NewGooglePhotosService(config.Google.ClientID, config.Google.ClientSecret, config.Google.RedirectURI)
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	token, err := r.runOAuthFlow(ctx, svc, state)
	if err != nil {
		return err
	}

	tokenPath, err := config.TokenPath()
	if err != nil {
		return err
	}
	if err := services.SaveToken(tokenPath, token); err != nil {
		return err
	}

	r.logger.Info("token cached", "path", tokenPath)
	r.writePlain("\n✓ Authenticated with Google Photos\n")
	r.writePlain("Token saved to: %s\n", tokenPath)
	return nil
}

// runOAuthFlow serves the OAuth callback on the redirect URI's address and
// waits for the browser to deliver the authorization code.
func (r *Runner) runOAuthFlow(ctx context.Context, svc *services.GooglePhotosService, state string) (*oauth2.Token, error) {
	authURL := svc.AuthURL(state)

	redirect, err := url.Parse(svc.RedirectURI())
	if err != nil || redirect.Host == "" {
		return r.promptForCode(ctx, svc, authURL)
	}

	handler := server.NewOAuthHandler(svc, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(handler)

	httpServer := &http.Server{Addr: redirect.Host, Handler: router}
	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	// Let the listener come up (or fail) before sending the user off.
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		r.logger.Warn("callback listener unavailable, falling back to manual code entry", "addr", redirect.Host, "error", err)
		return r.promptForCode(ctx, svc, authURL)
	default:
	}

	if err := shared.OpenBrowser(authURL); err != nil {
		r.writePlain("Open this URL in your browser and authorize access:\n\n%s\n\n", authURL)
	} else {
		r.writePlain("Opening your browser to authorize access.\n")
		r.writePlain("If nothing opens, visit:\n\n%s\n\n", authURL)
	}
	r.writePlain("Waiting for authorization...\n")

	timeout := time.NewTimer(oauthTimeout)
	defer timeout.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: flow completed without a token", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case err := <-serverErrors:
		r.logger.Warn("callback listener failed, falling back to manual code entry", "error", err)
		return r.promptForCode(ctx, svc, authURL)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: timed out waiting for authorization", shared.ErrAuthFailed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// promptForCode reads the authorization code from the terminal. Fallback for
// environments where the loopback listener cannot serve the redirect.
func (r *Runner) promptForCode(ctx context.Context, svc *services.GooglePhotosService, authURL string) (*oauth2.Token, error) {
	r.writePlain("Open this URL in your browser and authorize access:\n\n")
	r.writePlain("%s\n\n", authURL)
	r.writePlain("Paste the authorization code: ")

	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: no authorization code provided", shared.ErrMissingArgument)
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return nil, fmt.Errorf("%w: no authorization code provided", shared.ErrMissingArgument)
	}

	return svc.Exchange(ctx, code)
}

// AuthStatus reports whether a cached token exists and whether its access
// token is still fresh. An expired access token is fine as long as a refresh
// token is present.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	tokenPath, err := config.TokenPath()
	if err != nil {
		return err
	}

	token, err := services.LoadToken(tokenPath)
	if err != nil {
		r.writePlain("Not authenticated (no token at %s)\n", tokenPath)
		r.writePlain("Run 'albumsync auth login' to authenticate\n")
		return nil
	}

	r.writePlain("Authenticated\n")
	r.writePlain("Token: %s\n", tokenPath)
	if !token.Expiry.IsZero() {
		if token.Expiry.After(time.Now()) {
			r.writePlain("Access token valid until %s\n", token.Expiry.Format(time.RFC1123))
		} else if token.RefreshToken != "" {
			r.writePlain("Access token expired, will refresh automatically\n")
		} else {
			r.writePlain("Access token expired and no refresh token cached, run 'albumsync auth login'\n")
		}
	}
	return nil
}
