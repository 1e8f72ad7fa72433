package ics

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/teambition/rrule-go"
)

const crlf = "\r\n"

// ErrMalformedRecurrence is returned when a recurrence block does not have
// the DTSTART/DTEND/RRULE shape produced by RecurrenceBlock.String.
var ErrMalformedRecurrence = errors.New("malformed recurrence block")

// RecurrenceBlock is the serialized recurrence descriptor carried by
// model.Event.Recurrence. Values are raw iCalendar property values.
type RecurrenceBlock struct {
	DTStart string
	DTEnd   string
	RRule   string
}

// String renders exactly three CRLF-terminated lines in the fixed order
// DTSTART, DTEND, RRULE.
func (b RecurrenceBlock) String() string {
	var sb strings.Builder
	sb.WriteString("DTSTART:" + b.DTStart + crlf)
	sb.WriteString("DTEND:" + b.DTEnd + crlf)
	sb.WriteString("RRULE:" + b.RRule + crlf)
	return sb.String()
}

// ParseRecurrenceBlock is the inverse of RecurrenceBlock.String.
func ParseRecurrenceBlock(s string) (RecurrenceBlock, error) {
	var b RecurrenceBlock
	lines := strings.Split(strings.TrimSuffix(s, crlf), crlf)
	if len(lines) != 3 {
		return b, fmt.Errorf("%w: want 3 lines, got %d", ErrMalformedRecurrence, len(lines))
	}
	fields := []struct {
		name string
		dst  *string
	}{
		{"DTSTART:", &b.DTStart},
		{"DTEND:", &b.DTEnd},
		{"RRULE:", &b.RRule},
	}
	for i, f := range fields {
		v, ok := strings.CutPrefix(lines[i], f.name)
		if !ok {
			return RecurrenceBlock{}, fmt.Errorf("%w: line %d is not %s", ErrMalformedRecurrence, i+1, strings.TrimSuffix(f.name, ":"))
		}
		*f.dst = v
	}
	return b, nil
}

// NormalizeRRule removes whitespace from every value of an RRULE.
//
// Outlook writes day-of-week ordinals as "3 TU" instead of "3TU". Part
// order is kept; empty parts (e.g. a trailing ';') are dropped.
func NormalizeRRule(rule string) string {
	parts := strings.Split(rule, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		key, value, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found {
			if p := stripSpace(part); p != "" {
				out = append(out, p)
			}
			continue
		}
		out = append(out, key+"="+stripSpace(value))
	}
	return strings.Join(out, ";")
}

// ValidateRRule checks a normalized rule with rrule-go.
func ValidateRRule(rule string) error {
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("invalid RRULE %q: %w", rule, err)
	}
	return nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
