package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "ical2gcal/internal/log"
)

// StdinLocation selects standard input as the calendar source.
const StdinLocation = "-"

// maxBodySize caps remote downloads; exports beyond this are not calendars.
const maxBodySize = 32 << 20

// Fetcher reads a calendar document from a file, standard input, or an
// http(s)/webcal URL.
type Fetcher struct {
	client *http.Client
	stdin  io.Reader
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout client; a
// nil stdin means os.Stdin.
func NewFetcher(client *http.Client, stdin io.Reader) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Fetcher{client: client, stdin: stdin}
}

// Open returns the full document named by location.
func (f *Fetcher) Open(ctx context.Context, location string) ([]byte, error) {
	switch {
	case location == "":
		return nil, errors.New("calendar location is empty")
	case location == StdinLocation:
		return io.ReadAll(f.stdin)
	case isRemote(location):
		return f.fetch(ctx, location)
	default:
		return os.ReadFile(location)
	}
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "webcal://")
}

func (f *Fetcher) fetch(ctx context.Context, location string) ([]byte, error) {
	url := location
	if strings.HasPrefix(strings.ToLower(url), "webcal://") {
		url = "https://" + url[len("webcal://"):]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %s", redactURL(url), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Private calendar links carry their secret in the path or query, so only
// scheme and host are kept:
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += 3

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
