package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingEmail       = errors.New("account.email is required")
	ErrMissingCredentials = errors.New("account.credentials_file is required")
	ErrMissingCalendar    = errors.New("calendar.api_url is required")
)

// AccountConfig identifies the destination account and how to authenticate.
type AccountConfig struct {
	// Email is the account address. It is the login hint for the OAuth
	// consent screen and the impersonated subject for service accounts.
	Email string `yaml:"email" json:"email"`
	// Password enables the OAuth password grant when no token is cached.
	Password string `yaml:"password" json:"password"`
	// CredentialsFile is an OAuth client or service-account JSON file.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// TokenFile caches the OAuth token. Derived from Email when empty.
	TokenFile string `yaml:"token_file,omitempty" json:"token_file,omitempty"`
}

// CalendarConfig names the destination calendar.
type CalendarConfig struct {
	// APIURL is a calendar ID ("primary", "abc@group.calendar.google.com")
	// or a legacy feed URL containing one.
	APIURL string `yaml:"api_url" json:"api_url"`
	// Timezone is applied to floating DTSTART/DTEND of recurring events.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// UploadConfig tunes the uploader.
type UploadConfig struct {
	// MaxAttempts is the total number of insert attempts per event.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
	// Workers > 1 uploads events concurrently and gives up source order.
	Workers int `yaml:"workers" json:"workers"`
}

// Config is the top-level application configuration.
type Config struct {
	Account  AccountConfig  `yaml:"account" json:"account"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Upload   UploadConfig   `yaml:"upload" json:"upload"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			CredentialsFile: "credentials.json",
		},
		Calendar: CalendarConfig{
			APIURL:   "primary",
			Timezone: "UTC",
		},
		Upload: UploadConfig{
			MaxAttempts: 2,
			Workers:     1,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults.
func (c *Config) Normalize() {
	c.Account.Email = strings.TrimSpace(c.Account.Email)
	c.Calendar.APIURL = strings.TrimSpace(c.Calendar.APIURL)
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "UTC"
	}
	if c.Upload.MaxAttempts <= 0 {
		c.Upload.MaxAttempts = 2
	}
	if c.Upload.Backoff < 0 {
		c.Upload.Backoff = 0
	}
	if c.Upload.Workers <= 0 {
		c.Upload.Workers = 1
	}
}

// Validate checks the settings every mode needs. The calendar is checked
// separately by CalendarURL so that calendars can be listed before one
// has been picked.
func (c *Config) Validate() error {
	if c.Account.Email == "" {
		return ErrMissingEmail
	}
	if c.Account.CredentialsFile == "" {
		return ErrMissingCredentials
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}
	return nil
}

// CalendarURL returns calendar.api_url or ErrMissingCalendar.
func (c *Config) CalendarURL() (string, error) {
	if c.Calendar.APIURL == "" {
		return "", ErrMissingCalendar
	}
	return c.Calendar.APIURL, nil
}

// ResolvePath makes a relative path from the config file relative to the
// directory holding the config file.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist a default template is written with 0600
//     perms and returned, so the caller can point the user at it.
//   - If the file exists it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600; the file holds a password.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ical2gcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
