package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"ical2gcal/internal/model"
)

const defaultMaxPreview = 100

// Preview returns up to n start times of the given record. Non-recurring
// records yield their single start; recurring ones are expanded from the
// RRULE of their recurrence block, anchored on the record's start.
func Preview(ev model.Event, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > defaultMaxPreview {
		n = defaultMaxPreview
	}
	if !ev.Recurring() {
		return []time.Time{ev.Start}, nil
	}
	if ev.Start.IsZero() {
		return nil, errors.New("preview: recurring event has no start")
	}

	block, err := ParseRecurrenceBlock(ev.Recurrence)
	if err != nil {
		return nil, err
	}
	opt, err := rrule.StrToROption(block.RRule)
	if err != nil {
		return nil, err
	}
	// Ensure Dtstart is set to the event's DTSTART.
	opt.Dtstart = ev.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, n)
	next := r.Iterator()
	for len(out) < n {
		t, ok := next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
