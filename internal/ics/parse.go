package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "ical2gcal/internal/log"
	"ical2gcal/internal/model"
)

var (
	ErrEmptyBody           = errors.New("empty ICS body")
	ErrNotCalendar         = errors.New("document has no VCALENDAR")
	ErrMissingUID          = errors.New("missing UID")
	ErrMissingStart        = errors.New("missing DTSTART")
	ErrMissingEnd          = errors.New("missing DTEND")
	ErrDurationUnsupported = errors.New("DURATION without DTEND is not supported")
)

// ExtractOptions controls how Extract treats components it cannot convert.
type ExtractOptions struct {
	// SkipInvalid logs and drops an unconvertible VEVENT instead of
	// failing the whole document.
	SkipInvalid bool
}

// ComponentError reports which component of the document failed.
type ComponentError struct {
	Index int // position among the calendar's top-level components
	UID   string
	Err   error
}

func (e *ComponentError) Error() string {
	if e.UID != "" {
		return fmt.Sprintf("component %d (uid %s): %v", e.Index, e.UID, e.Err)
	}
	return fmt.Sprintf("component %d: %v", e.Index, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }

// Extract parses calendar text into event records, one per VEVENT, in
// document order. Timezone definitions and other components are skipped.
func Extract(body []byte, opts ExtractOptions) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	if !bytes.Contains(bytes.ToUpper(body), []byte("BEGIN:VCALENDAR")) {
		return nil, ErrNotCalendar
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]model.Event, 0)
	for i, comp := range cal.Components {
		kind, ve := classify(comp)
		switch kind {
		case model.KindEvent:
			ev, perr := parseVEvent(ve)
			if perr != nil {
				cerr := &ComponentError{Index: i, UID: ev.UID, Err: perr}
				if !opts.SkipInvalid {
					return nil, cerr
				}
				appLog.Error("ics vevent skipped", cerr, "index", i)
				continue
			}
			events = append(events, ev)
		case model.KindTimezone:
			appLog.Debug("ics timezone definition ignored", "index", i)
		case model.KindIgnored:
			appLog.Debug("ics component ignored", "index", i)
		}
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

// classify maps a parsed component onto model.ComponentKind. It is the only
// place that inspects the library's concrete component types.
func classify(comp ical.Component) (model.ComponentKind, *ical.VEvent) {
	switch c := comp.(type) {
	case *ical.VEvent:
		return model.KindEvent, c
	case *ical.VTimezone:
		return model.KindTimezone, nil
	default:
		return model.KindIgnored, nil
	}
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return out, ErrMissingUID
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || strings.TrimSpace(dtStartProp.Value) == "" {
		return out, ErrMissingStart
	}
	dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if dtEndProp == nil || strings.TrimSpace(dtEndProp.Value) == "" {
		if ve.GetProperty("DURATION") != nil {
			return out, ErrDurationUnsupported
		}
		return out, ErrMissingEnd
	}

	start, allDay, err := parsePropTime(dtStartProp)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, _, err := parsePropTime(dtEndProp)
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}
	out.Start = start
	out.End = end
	out.AllDay = allDay

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		rule := NormalizeRRule(rruleProp.Value)
		if err := ValidateRRule(rule); err != nil {
			return out, err
		}
		out.Recurrence = RecurrenceBlock{
			DTStart: strings.TrimSpace(dtStartProp.Value),
			DTEnd:   strings.TrimSpace(dtEndProp.Value),
			RRule:   rule,
		}.String()
	}

	return out, nil
}

// parsePropTime parses a DTSTART/DTEND property, honoring VALUE=DATE and
// TZID. An unknown TZID (Outlook writes Windows zone names) degrades to a
// floating wall clock.
func parsePropTime(p *ical.IANAProperty) (time.Time, bool, error) {
	val := strings.TrimSpace(p.Value)

	allDay := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}

	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 && !strings.HasSuffix(val, "Z") {
		loc, err := time.LoadLocation(strings.Trim(tzs[0], `"`))
		if err != nil {
			appLog.Debug("ics unknown TZID, using floating time", "tzid", tzs[0])
		} else {
			t, err := parseICSTimeIn(val, loc)
			return t, allDay, err
		}
	}

	t, err := parseICSTime(val)
	return t, allDay, err
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// Floating values keep their wall clock and are placed in UTC.
func parseICSTime(v string) (time.Time, error) {
	return parseICSTimeIn(v, time.UTC)
}

func parseICSTimeIn(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, loc)
}
