package upload

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"ical2gcal/internal/gcal"
	"ical2gcal/internal/ics"
)

// Policy bounds the submission attempts for one event.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int
	// Backoff is the wait before the first retry; later retries grow
	// exponentially. Zero retries immediately.
	Backoff time.Duration
}

// DefaultPolicy is one immediate retry after the first failure.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 2}
}

func (p Policy) attempts() uint {
	if p.MaxAttempts < 1 {
		return 1
	}
	return uint(p.MaxAttempts)
}

func (p Policy) backOff() backoff.BackOff {
	if p.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	return b
}

// Transient reports whether a failed insert is worth retrying.
// Request timeouts, throttling, server errors and transport failures are
// transient. Other client errors, auth failures, local payload errors and
// context cancellation are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gcal.ErrNoTime) || errors.Is(err, ics.ErrMalformedRecurrence) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= 500:
			return true
		default:
			return false
		}
	}

	var authErr *oauth2.RetrieveError
	if errors.As(err, &authErr) {
		return false
	}
	return true
}

// classify marks permanent errors so backoff stops immediately.
func classify(err error) error {
	if err == nil || Transient(err) {
		return err
	}
	return backoff.Permanent(err)
}
