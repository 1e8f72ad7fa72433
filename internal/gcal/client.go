package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ical2gcal/internal/ics"
	"ical2gcal/internal/model"
)

// ErrNoTime is returned for an entry with neither a when element nor a
// recurrence block.
var ErrNoTime = errors.New("entry has no time window and no recurrence")

// Service is the remote calendar collaborator.
type Service interface {
	// ListCalendars enumerates the account's calendars.
	ListCalendars(ctx context.Context) ([]model.Calendar, error)
	// InsertEvent creates e on the calendar and returns the remote event ID.
	InsertEvent(ctx context.Context, calendarID string, e *Entry) (string, error)
}

// Client implements Service over the Google Calendar v3 API.
type Client struct {
	svc *calendar.Service
	// timezone is applied to floating recurrence start/end values.
	timezone string
}

// NewClient creates a Client using an already authenticated HTTP client.
// Extra options (e.g. option.WithEndpoint) are passed to the API service.
func NewClient(ctx context.Context, httpClient *http.Client, timezone string, opts ...option.ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client cannot be nil")
	}
	if timezone == "" {
		timezone = "UTC"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc, timezone: timezone}, nil
}

// ListCalendars lists all calendars accessible to the account.
func (c *Client) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	var cals []model.Calendar
	err := c.svc.CalendarList.List().Pages(ctx, func(list *calendar.CalendarList) error {
		for _, entry := range list.Items {
			cals = append(cals, toCalendar(entry))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return cals, nil
}

// InsertEvent creates a new event. It never updates an existing one.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, e *Entry) (string, error) {
	ev, err := ToEvent(e, c.timezone)
	if err != nil {
		return "", err
	}
	created, err := c.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return created.Id, nil
}

// ToEvent converts an Entry into a Calendar v3 event. A recurrence block
// provides start, end and the RRULE; otherwise the first when element
// provides start and end.
func ToEvent(e *Entry, timezone string) (*calendar.Event, error) {
	if e == nil {
		return nil, errors.New("entry is nil")
	}
	ev := &calendar.Event{
		Summary:     e.Title,
		Description: e.Content,
	}
	if len(e.Where) > 0 {
		ev.Location = e.Where[0].ValueString
	}

	if e.Recurrence != "" {
		block, err := ics.ParseRecurrenceBlock(e.Recurrence)
		if err != nil {
			return nil, err
		}
		if ev.Start, err = recurrenceDateTime(block.DTStart, timezone); err != nil {
			return nil, fmt.Errorf("recurrence DTSTART: %w", err)
		}
		if ev.End, err = recurrenceDateTime(block.DTEnd, timezone); err != nil {
			return nil, fmt.Errorf("recurrence DTEND: %w", err)
		}
		ev.Recurrence = []string{"RRULE:" + block.RRule}
		return ev, nil
	}

	if len(e.When) == 0 {
		return nil, ErrNoTime
	}
	w := e.When[0]
	if w.AllDay {
		ev.Start = &calendar.EventDateTime{Date: datePart(w.StartTime)}
		ev.End = &calendar.EventDateTime{Date: datePart(w.EndTime)}
	} else {
		ev.Start = &calendar.EventDateTime{DateTime: w.StartTime}
		ev.End = &calendar.EventDateTime{DateTime: w.EndTime}
	}
	return ev, nil
}

// recurrenceDateTime maps a raw iCalendar DATE or DATE-TIME value onto
// an EventDateTime. Recurring events need an explicit time zone.
func recurrenceDateTime(v, timezone string) (*calendar.EventDateTime, error) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return nil, err
		}
		return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: timezone}, nil
	case strings.Contains(v, "T"):
		t, err := time.Parse("20060102T150405", v)
		if err != nil {
			return nil, err
		}
		return &calendar.EventDateTime{DateTime: t.Format("2006-01-02T15:04:05"), TimeZone: timezone}, nil
	default:
		t, err := time.Parse("20060102", v)
		if err != nil {
			return nil, err
		}
		return &calendar.EventDateTime{Date: t.Format("2006-01-02")}, nil
	}
}

func datePart(ts string) string {
	if len(ts) >= len("2006-01-02") {
		return ts[:len("2006-01-02")]
	}
	return ts
}

func toCalendar(entry *calendar.CalendarListEntry) model.Calendar {
	if entry == nil {
		return model.Calendar{}
	}
	title := entry.Summary
	if entry.SummaryOverride != "" {
		title = entry.SummaryOverride
	}
	return model.Calendar{ID: entry.Id, Title: title}
}
