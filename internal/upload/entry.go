package upload

import (
	"time"

	"ical2gcal/internal/gcal"
	"ical2gcal/internal/model"
)

// GoogleTimeLayout is the wire pattern for single-occurrence windows.
// The trailing Z is a literal and the milliseconds are always zero.
const GoogleTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in UTC using GoogleTimeLayout. Sub-second
// precision is dropped.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(GoogleTimeLayout)
}

// BuildEntry maps an event record onto the outbound entry. A recurring
// record carries its recurrence block and no when element.
func BuildEntry(ev model.Event) *gcal.Entry {
	e := &gcal.Entry{
		Title:   ev.Summary,
		Content: ev.Description,
		Where:   []gcal.Where{{ValueString: ev.Location}},
	}
	if ev.Recurring() {
		e.Recurrence = ev.Recurrence
		return e
	}
	e.When = []gcal.When{{
		StartTime: FormatTime(ev.Start),
		EndTime:   FormatTime(ev.End),
		AllDay:    ev.AllDay,
	}}
	return e
}
