package cli

import (
	"context"
	"errors"
	"fmt"

	"ical2gcal/internal/config"
	"ical2gcal/internal/gcal"
	"ical2gcal/internal/ics"
	"ical2gcal/internal/log"
	"ical2gcal/internal/upload"
)

type app struct {
	opts       options
	env        Env
	configPath string
}

func (a *app) run(ctx context.Context) error {
	if a.opts.verbose {
		log.SetLevel(log.LevelDebug)
	}
	if a.opts.listCals == (a.opts.ical != "") {
		return &usageError{ErrModeRequired}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.opts.workers > 0 {
		cfg.Upload.Workers = a.opts.workers
	}

	if a.opts.listCals {
		return a.listCalendars(ctx, cfg)
	}
	return a.importCalendar(ctx, cfg)
}

func (a *app) listCalendars(ctx context.Context, cfg *config.Config) error {
	if err := a.validate(cfg); err != nil {
		return err
	}
	svc, err := a.env.NewService(ctx, cfg, a.configPath, a.env)
	if err != nil {
		return err
	}
	cals, err := svc.ListCalendars(ctx)
	if err != nil {
		return err
	}
	for _, c := range cals {
		fmt.Fprintf(a.env.Stdout, "%s\t%s\n", c.ID, c.Title)
	}
	log.Debug("calendars listed", "count", len(cals))
	return nil
}

func (a *app) importCalendar(ctx context.Context, cfg *config.Config) error {
	var (
		calendarID string
		svc        gcal.Service
	)
	if !a.opts.dryRun {
		if err := a.validate(cfg); err != nil {
			return err
		}
		apiURL, err := cfg.CalendarURL()
		if err != nil {
			return fmt.Errorf("%w (run with --listcals to pick one)", err)
		}
		if calendarID, err = gcal.CalendarID(apiURL); err != nil {
			return err
		}
		// The authorisation prompt cannot share stdin with the calendar body.
		env := a.env
		if a.opts.ical == ics.StdinLocation {
			env.Interactive = false
		}
		if svc, err = env.NewService(ctx, cfg, a.configPath, env); err != nil {
			return err
		}
	}

	body, err := ics.NewFetcher(a.env.HTTPClient, a.env.Stdin).Open(ctx, a.opts.ical)
	if err != nil {
		return err
	}
	events, err := ics.Extract(body, ics.ExtractOptions{SkipInvalid: a.opts.skipInvalid})
	if err != nil {
		return err
	}

	uopts := []upload.Option{
		upload.WithPolicy(upload.Policy{
			MaxAttempts: cfg.Upload.MaxAttempts,
			Backoff:     cfg.Upload.Backoff,
		}),
		upload.WithWorkers(cfg.Upload.Workers),
	}
	if a.opts.dryRun {
		uopts = append(uopts, upload.WithDryRun(a.env.Stdout))
	}

	rep, err := upload.New(svc, calendarID, uopts...).Send(ctx, events)
	if err != nil {
		log.Info("import aborted", "sent", rep.Sent, "events", len(events))
		return err
	}
	log.Info("import finished",
		"calendar", calendarID,
		"events", len(events),
		"sent", rep.Sent,
		"dry_run", a.opts.dryRun,
	)
	return nil
}

func (a *app) validate(cfg *config.Config) error {
	err := cfg.Validate()
	if errors.Is(err, config.ErrMissingEmail) {
		return fmt.Errorf("%w: edit %s", err, a.configPath)
	}
	return err
}
