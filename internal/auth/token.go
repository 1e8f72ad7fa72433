package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"ical2gcal/internal/log"
)

// DefaultTokenFile is <user cache>/ical2gcal/<email>.token.json.
func DefaultTokenFile(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("token file: email is empty")
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("token file: %w", err)
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, email)
	return filepath.Join(dir, "ical2gcal", name+".token.json"), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token %s holds no credentials", path)
	}
	return tok, nil
}

// saveToken writes tok atomically with owner-only permissions.
func saveToken(path string, tok *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ical2gcal-token-*.tmp")
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("save token: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("save token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// savingTokenSource writes refreshed tokens back to the cache file.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			// The request can still proceed with the fresh token.
			log.Error("failed to persist refreshed token", err, "path", s.path)
		} else {
			log.Debug("refreshed token saved", "path", s.path)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
