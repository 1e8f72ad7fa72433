package gcal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"primary", "primary"},
		{"  team@group.calendar.google.com ", "team@group.calendar.google.com"},
		{"https://www.google.com/calendar/feeds/me%40example.com/private/full", "me@example.com"},
		{"http://www.google.com/calendar/feeds/default/private/full", "primary"},
		{"https://calendar.google.com/calendar/ical/team%40group.calendar.google.com/private-abc/basic.ics", "team@group.calendar.google.com"},
		{"https://calendar.google.com/calendar/embed?src=me%40example.com", "me@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CalendarID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalendarIDErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "https://www.google.com/calendar/render"} {
		_, err := CalendarID(in)
		assert.Error(t, err, in)
	}
}
