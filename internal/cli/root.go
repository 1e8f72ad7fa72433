// Package cli implements the ical2gcal command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"ical2gcal/internal/auth"
	"ical2gcal/internal/config"
	"ical2gcal/internal/gcal"
	"ical2gcal/internal/log"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrModeRequired is the usage error for choosing neither or both modes.
var ErrModeRequired = errors.New("exactly one of --listcals or --ical must be given")

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ServiceFactory builds the remote calendar service for a loaded config.
type ServiceFactory func(ctx context.Context, cfg *config.Config, configPath string, env Env) (gcal.Service, error)

// Env carries the process environment into Run.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Interactive allows the browser authorisation prompt on Stdin.
	Interactive bool
	// HTTPClient fetches remote calendar exports. Nil uses a default client.
	HTTPClient *http.Client
	// NewService defaults to the Google Calendar API.
	NewService ServiceFactory
}

type options struct {
	listCals    bool
	ical        string
	dryRun      bool
	skipInvalid bool
	workers     int
	verbose     bool
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	if env.Stdin == nil {
		env.Stdin = os.Stdin
	}
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.NewService == nil {
		env.NewService = googleService
	}

	cmd := newRootCmd(env)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(env.Stderr, "Error: %v\n\n%s", uerr, cmd.UsageString())
		return ExitUsage
	}
	log.Error("ical2gcal failed", err)
	return ExitFailure
}

func newRootCmd(env Env) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ical2gcal [options] <config>",
		Short: "Upload iCalendar events to Google Calendar",
		Long: `ical2gcal reads an iCalendar export (a file, standard input or a URL)
and creates every event in it on a Google Calendar.

Each run creates new events. Importing the same file twice creates
duplicates.`,
		Example: `  ical2gcal -l ~/.config/ical2gcal.yaml
  ical2gcal -i export.ics ~/.config/ical2gcal.yaml
  ical2gcal -n -i https://example.com/team.ics ~/.config/ical2gcal.yaml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one config path, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := &app{opts: opts, env: env, configPath: args[0]}
			a.opts.workers = -1
			if cmd.Flags().Changed("workers") {
				a.opts.workers = opts.workers
			}
			return a.run(cmd.Context())
		},
	}
	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)
	cmd.SetVersionTemplate(`{{printf "ical2gcal version %s\n" .Version}}`)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.listCals, "listcals", "l", false, "list the account's calendars and exit")
	f.StringVarP(&opts.ical, "ical", "i", "", "import the iCalendar file at `path` (- for stdin, or an http(s)/webcal URL)")
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "print the entries that would be created instead of sending them")
	f.BoolVar(&opts.skipInvalid, "skip-invalid", false, "skip events that cannot be converted instead of aborting")
	f.IntVarP(&opts.workers, "workers", "w", 1, "upload up to `n` events concurrently (order is not preserved)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// googleService authenticates the configured account and returns a
// Calendar API client.
func googleService(ctx context.Context, cfg *config.Config, configPath string, env Env) (gcal.Service, error) {
	tokenFile := cfg.Account.TokenFile
	if tokenFile != "" {
		tokenFile = config.ResolvePath(configPath, tokenFile)
	}
	httpClient, err := auth.HTTPClient(ctx, auth.Options{
		Email:           cfg.Account.Email,
		Password:        cfg.Account.Password,
		CredentialsFile: config.ResolvePath(configPath, cfg.Account.CredentialsFile),
		TokenFile:       tokenFile,
		Interactive:     env.Interactive,
		In:              env.Stdin,
		Out:             env.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", cfg.Account.Email, err)
	}
	return gcal.NewClient(ctx, httpClient, cfg.Calendar.Timezone)
}
