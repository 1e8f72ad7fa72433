package gcal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// CalendarID resolves calendar.api_url into a v3 calendar ID.
//
// Accepted forms:
//
//	primary
//	team@group.calendar.google.com
//	https://www.google.com/calendar/feeds/<id>/private/full
//	https://calendar.google.com/calendar/ical/<id>/private-xyz/basic.ics
//	https://calendar.google.com/calendar/embed?src=<id>
//
// The legacy "default" feed maps to "primary".
func CalendarID(apiURL string) (string, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return "", errors.New("calendar url is empty")
	}
	lower := strings.ToLower(apiURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return apiURL, nil
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse calendar url: %w", err)
	}

	if src := u.Query().Get("src"); src != "" {
		return src, nil
	}

	segs := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segs {
		if (seg == "feeds" || seg == "ical") && i+1 < len(segs) {
			id, err := url.PathUnescape(segs[i+1])
			if err != nil {
				return "", fmt.Errorf("calendar url: %w", err)
			}
			if id == "default" {
				return "primary", nil
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("calendar url %q does not name a calendar", apiURL)
}
