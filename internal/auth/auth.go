// Package auth builds the authenticated HTTP client used for Calendar API
// calls. Service account keys use domain-wide delegation on behalf of the
// configured account; OAuth client files use a cached user token.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"
	calendar "google.golang.org/api/calendar/v3"

	"ical2gcal/internal/log"
)

// ErrNoToken is returned when no cached token exists and none can be
// obtained without user interaction.
var ErrNoToken = errors.New("no cached token and no way to obtain one")

// Options configures HTTPClient.
type Options struct {
	Email           string
	Password        string
	CredentialsFile string
	// TokenFile caches the user token. Empty means DefaultTokenFile(Email).
	TokenFile string
	// Interactive allows the browser consent flow; the code is read from In.
	Interactive bool
	In          io.Reader
	Out         io.Writer
	// Scopes defaults to full calendar access.
	Scopes []string
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// HTTPClient returns a client that authorises every request for opts.Email.
func HTTPClient(ctx context.Context, opts Options) (*http.Client, error) {
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{calendar.CalendarScope}
	}
	b, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &kind); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", opts.CredentialsFile, err)
	}

	if kind.Type == "service_account" {
		conf, err := google.JWTConfigFromJSON(b, opts.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		conf.Subject = opts.Email
		log.Debug("using service account", "client", conf.Email, "subject", opts.Email)
		return conf.Client(ctx), nil
	}

	conf, err := google.ConfigFromJSON(b, opts.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	return userClient(ctx, conf, opts)
}

func userClient(ctx context.Context, conf *oauth2.Config, opts Options) (*http.Client, error) {
	path := opts.TokenFile
	if path == "" {
		p, err := DefaultTokenFile(opts.Email)
		if err != nil {
			return nil, err
		}
		path = p
	}

	tok, err := tokenFromFile(path)
	switch {
	case err == nil:
		log.Debug("using cached token", "path", path)
	case errors.Is(err, os.ErrNotExist):
		tok, err = acquireToken(ctx, conf, opts)
		if err != nil {
			return nil, err
		}
		if err := saveToken(path, tok); err != nil {
			return nil, err
		}
		log.Info("token saved", "path", path)
	default:
		return nil, err
	}

	ts := &savingTokenSource{
		base: conf.TokenSource(ctx, tok),
		path: path,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

func acquireToken(ctx context.Context, conf *oauth2.Config, opts Options) (*oauth2.Token, error) {
	if opts.Password != "" {
		tok, err := conf.PasswordCredentialsToken(ctx, opts.Email, opts.Password)
		if err != nil {
			return nil, fmt.Errorf("password login for %s: %w", opts.Email, err)
		}
		return tok, nil
	}
	if !opts.Interactive || opts.In == nil {
		return nil, fmt.Errorf("%w: run interactively once to authorise %s", ErrNoToken, opts.Email)
	}
	return tokenFromWeb(ctx, conf, opts)
}

func tokenFromWeb(ctx context.Context, conf *oauth2.Config, opts Options) (*oauth2.Token, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	authURL := conf.AuthCodeURL("state-token",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("login_hint", opts.Email),
	)
	fmt.Fprintf(out, "Go to the following link in your browser:\n%v\n", authURL)
	fmt.Fprintln(out, "Enter the authorization code:")

	sc := bufio.NewScanner(opts.In)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read authorization code: %w", err)
		}
		return nil, errors.New("read authorization code: no input")
	}
	code := strings.TrimSpace(sc.Text())
	if code == "" {
		return nil, errors.New("authorization code is empty")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}
