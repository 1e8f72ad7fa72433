package model

import "time"

// Event is the normalized record of one VEVENT, ready to be uploaded.
// Records are built once by the extractor and passed around by value.
type Event struct {
	UID string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End as parsed. Floating times carry their wall clock in UTC.
	Start time.Time
	End   time.Time

	// Recurrence is the pre-serialized DTSTART/DTEND/RRULE block. When set
	// it supersedes Start/End for the outbound entry; empty means a single
	// occurrence.
	Recurrence string
}

// Recurring reports whether the record carries a recurrence descriptor.
func (e Event) Recurring() bool {
	return e.Recurrence != ""
}

// Calendar is one destination calendar as listed by the remote service.
type Calendar struct {
	ID    string
	Title string
}

// ComponentKind classifies a top-level calendar component.
type ComponentKind int

const (
	// KindIgnored covers every component this tool has no use for
	// (VTODO, VJOURNAL, VFREEBUSY, X- components, ...).
	KindIgnored ComponentKind = iota
	KindEvent
	KindTimezone
)

func (k ComponentKind) String() string {
	switch k {
	case KindEvent:
		return "VEVENT"
	case KindTimezone:
		return "VTIMEZONE"
	default:
		return "ignored"
	}
}
