package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"ical2gcal/internal/gcal"
	"ical2gcal/internal/ics"
	"ical2gcal/internal/log"
	"ical2gcal/internal/model"
)

// previewCount is how many occurrences a dry run lists per recurring event.
const previewCount = 5

// Inserter creates one entry on a calendar and returns its remote ID.
type Inserter interface {
	InsertEvent(ctx context.Context, calendarID string, e *gcal.Entry) (string, error)
}

// Report summarises a Send call.
type Report struct {
	// Sent is the number of entries created remotely.
	Sent int
	// IDs lists created entry IDs in completion order, which is document
	// order when uploads are sequential.
	IDs []string
	// Planned is the number of entries rendered by a dry run.
	Planned int
}

// SendError is returned when an event could not be created after all
// attempts. It aborts the remaining batch.
type SendError struct {
	Index    int
	UID      string
	Attempts int
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("upload event %d (uid %q) failed after %d attempt(s): %v", e.Index, e.UID, e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Uploader submits event records as new remote entries. It never updates
// or merges existing entries.
type Uploader struct {
	svc        Inserter
	calendarID string
	policy     Policy
	workers    int
	dryRun     io.Writer
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(u *Uploader) { u.policy = p }
}

// WithWorkers uploads up to n events concurrently. Upload order is then
// not preserved.
func WithWorkers(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.workers = n
		}
	}
}

// WithDryRun renders entries as JSON to w instead of sending them.
func WithDryRun(w io.Writer) Option {
	return func(u *Uploader) { u.dryRun = w }
}

// New creates an Uploader targeting calendarID. svc may be nil for a dry run.
func New(svc Inserter, calendarID string, opts ...Option) *Uploader {
	u := &Uploader{
		svc:        svc,
		calendarID: calendarID,
		policy:     DefaultPolicy(),
		workers:    1,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Send creates every event. The first event that still fails after the
// retry policy is exhausted aborts the batch; the report covers the
// entries created before that.
func (u *Uploader) Send(ctx context.Context, events []model.Event) (Report, error) {
	if u.dryRun != nil {
		return u.render(events)
	}
	if u.svc == nil {
		return Report{}, errors.New("uploader has no calendar service")
	}

	start := time.Now()
	var (
		rep Report
		err error
	)
	if u.workers <= 1 {
		rep, err = u.sendSequential(ctx, events)
	} else {
		rep, err = u.sendConcurrent(ctx, events)
	}
	if err != nil {
		return rep, err
	}
	log.Info("upload completed",
		"calendar", u.calendarID,
		"sent", rep.Sent,
		"elapsed", time.Since(start).String(),
	)
	return rep, nil
}

func (u *Uploader) sendSequential(ctx context.Context, events []model.Event) (Report, error) {
	var rep Report
	for i, ev := range events {
		id, err := u.sendOne(ctx, i, ev)
		if err != nil {
			return rep, err
		}
		rep.Sent++
		rep.IDs = append(rep.IDs, id)
	}
	return rep, nil
}

func (u *Uploader) sendConcurrent(ctx context.Context, events []model.Event) (Report, error) {
	var (
		rep Report
		mu  sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for i, ev := range events {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			id, err := u.sendOne(gctx, i, ev)
			if err != nil {
				return err
			}
			mu.Lock()
			rep.Sent++
			rep.IDs = append(rep.IDs, id)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return rep, err
}

func (u *Uploader) sendOne(ctx context.Context, index int, ev model.Event) (string, error) {
	entry := BuildEntry(ev)
	attempts := 0
	op := func() (string, error) {
		attempts++
		id, err := u.svc.InsertEvent(ctx, u.calendarID, entry)
		return id, classify(err)
	}
	notify := func(err error, wait time.Duration) {
		log.Info("retrying event upload",
			"uid", ev.UID,
			"attempt", attempts,
			"wait", wait.String(),
			"err", err,
		)
	}

	id, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(u.policy.backOff()),
		backoff.WithMaxTries(u.policy.attempts()),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return "", &SendError{Index: index, UID: ev.UID, Attempts: attempts, Err: err}
	}
	log.Debug("event created", "uid", ev.UID, "id", id, "attempts", attempts)
	return id, nil
}

type plannedEntry struct {
	UID         string      `json:"uid"`
	Entry       *gcal.Entry `json:"entry"`
	Occurrences []string    `json:"occurrences,omitempty"`
}

func (u *Uploader) render(events []model.Event) (Report, error) {
	var rep Report
	enc := json.NewEncoder(u.dryRun)
	enc.SetIndent("", "  ")
	for i, ev := range events {
		p := plannedEntry{UID: ev.UID, Entry: BuildEntry(ev)}
		if ev.Recurring() {
			occ, err := ics.Preview(ev, previewCount)
			if err != nil {
				return rep, &SendError{Index: i, UID: ev.UID, Err: err}
			}
			for _, t := range occ {
				p.Occurrences = append(p.Occurrences, FormatTime(t))
			}
		}
		if err := enc.Encode(p); err != nil {
			return rep, fmt.Errorf("write dry run: %w", err)
		}
		rep.Planned++
	}
	return rep, nil
}
