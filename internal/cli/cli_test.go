package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"ical2gcal/internal/config"
	"ical2gcal/internal/gcal"
	"ical2gcal/internal/log"
	"ical2gcal/internal/model"
)

const lunchICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//ical2gcal//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lunch-1@example.com\r\n" +
	"DTSTART:20090601T120000\r\n" +
	"DTEND:20090601T130000\r\n" +
	"SUMMARY:Lunch\r\n" +
	"LOCATION:Cafe\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:planning@example.com\r\n" +
	"DTSTART:20090616T090000Z\r\n" +
	"DTEND:20090616T093000Z\r\n" +
	"SUMMARY:Planning\r\n" +
	"RRULE:FREQ=MONTHLY;BYDAY=3 TU\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fakeService struct {
	mu       sync.Mutex
	failures []error
	calls    int
	calIDs   []string
	entries  []*gcal.Entry
}

func (f *fakeService) ListCalendars(context.Context) ([]model.Calendar, error) {
	return []model.Calendar{
		{ID: "me@example.com", Title: "Me"},
		{ID: "team@group.calendar.google.com", Title: "Team"},
	}, nil
}

func (f *fakeService) InsertEvent(_ context.Context, calendarID string, e *gcal.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return "", err
	}
	f.calIDs = append(f.calIDs, calendarID)
	f.entries = append(f.entries, e)
	return "evt", nil
}

type harness struct {
	svc        *fakeService
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	logs       bytes.Buffer
	configPath string
	factoryErr error
	built      int
}

func newHarness(t *testing.T, yamlBody string) *harness {
	t.Helper()
	h := &harness{svc: &fakeService{}}
	h.configPath = filepath.Join(t.TempDir(), "ical2gcal.yaml")
	if yamlBody != "" {
		require.NoError(t, os.WriteFile(h.configPath, []byte(yamlBody), 0o600))
	}
	log.SetOutput(&h.logs)
	t.Cleanup(func() {
		log.SetOutput(nil)
		log.SetLevel(log.LevelInfo)
	})
	return h
}

func (h *harness) run(stdin string, args ...string) int {
	env := Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		NewService: func(context.Context, *config.Config, string, Env) (gcal.Service, error) {
			h.built++
			if h.factoryErr != nil {
				return nil, h.factoryErr
			}
			return h.svc, nil
		},
	}
	return Run(context.Background(), args, env)
}

const validConfig = `account:
  email: me@example.com
  credentials_file: credentials.json
calendar:
  api_url: https://www.google.com/calendar/feeds/team%40example.com/private/full
`

func TestModeFlagsAreMutuallyExclusive(t *testing.T) {
	h := newHarness(t, validConfig)

	code := h.run("", "-l", "-i", "export.ics", h.configPath)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, h.stderr.String(), ErrModeRequired.Error())
	assert.Contains(t, h.stderr.String(), "Usage:")
	assert.Zero(t, h.built)
}

func TestModeFlagRequired(t *testing.T) {
	h := newHarness(t, validConfig)
	assert.Equal(t, ExitUsage, h.run("", h.configPath))
	assert.Contains(t, h.stderr.String(), ErrModeRequired.Error())
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing config path", []string{"-l"}},
		{"two config paths", []string{"-l", "a.yaml", "b.yaml"}},
		{"unknown flag", []string{"--frobnicate", "a.yaml"}},
		{"bad workers", []string{"-w", "many", "-l", "a.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			assert.Equal(t, ExitUsage, h.run("", tt.args...))
			assert.Contains(t, h.stderr.String(), "Usage:")
		})
	}
}

func TestHelpAndVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	h := newHarness(t, "")
	assert.Equal(t, ExitOK, h.run("", "-h"))
	assert.Contains(t, h.stdout.String(), "--listcals")

	h = newHarness(t, "")
	assert.Equal(t, ExitOK, h.run("", "--version"))
	assert.Contains(t, h.stdout.String(), "ical2gcal version 1.2.3")
}

func TestListCalendarsWithoutCalendarURL(t *testing.T) {
	h := newHarness(t, `account:
  email: me@example.com
calendar:
  api_url: ""
`)

	require.Equal(t, ExitOK, h.run("", "-l", h.configPath))
	assert.Equal(t, "me@example.com\tMe\nteam@group.calendar.google.com\tTeam\n", h.stdout.String())
}

func TestImportFile(t *testing.T) {
	h := newHarness(t, validConfig)
	icsPath := filepath.Join(t.TempDir(), "export.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(lunchICS), 0o600))

	require.Equal(t, ExitOK, h.run("", "-i", icsPath, h.configPath), h.logs.String())
	require.Len(t, h.svc.entries, 2)
	assert.Equal(t, []string{"team@example.com", "team@example.com"}, h.svc.calIDs)

	lunch := h.svc.entries[0]
	assert.Equal(t, "Lunch", lunch.Title)
	assert.Equal(t, []gcal.Where{{ValueString: "Cafe"}}, lunch.Where)
	require.Len(t, lunch.When, 1)
	assert.Equal(t, "2009-06-01T12:00:00.000Z", lunch.When[0].StartTime)
	assert.Equal(t, "2009-06-01T13:00:00.000Z", lunch.When[0].EndTime)

	planning := h.svc.entries[1]
	assert.Empty(t, planning.When)
	assert.Equal(t, "DTSTART:20090616T090000Z\r\nDTEND:20090616T093000Z\r\nRRULE:FREQ=MONTHLY;BYDAY=3TU\r\n", planning.Recurrence)
	assert.Contains(t, h.logs.String(), "import finished")
}

func TestImportFromStdinRetriesOnce(t *testing.T) {
	h := newHarness(t, validConfig)
	h.svc.failures = []error{&googleapi.Error{Code: http.StatusInternalServerError}}

	require.Equal(t, ExitOK, h.run(lunchICS, "--ical", "-", h.configPath))
	assert.Equal(t, 3, h.svc.calls, "one retry for the first event, one call for the second")
	assert.Len(t, h.svc.entries, 2)
}

func TestImportAbortsAfterRetries(t *testing.T) {
	h := newHarness(t, validConfig)
	boom := errors.New("connection reset")
	h.svc.failures = []error{boom, boom}

	assert.Equal(t, ExitFailure, h.run(lunchICS, "-i", "-", h.configPath))
	assert.Equal(t, 2, h.svc.calls)
	assert.Empty(t, h.svc.entries)
	assert.Contains(t, h.logs.String(), "connection reset")
}

func TestImportRequiresCalendarURL(t *testing.T) {
	h := newHarness(t, `account:
  email: me@example.com
calendar:
  api_url: ""
`)
	assert.Equal(t, ExitFailure, h.run(lunchICS, "-i", "-", h.configPath))
	assert.Contains(t, h.logs.String(), config.ErrMissingCalendar.Error())
	assert.Zero(t, h.built)
}

func TestImportAuthFailure(t *testing.T) {
	h := newHarness(t, validConfig)
	h.factoryErr = errors.New("authenticate me@example.com: token revoked")

	assert.Equal(t, ExitFailure, h.run(lunchICS, "-i", "-", h.configPath))
	assert.Contains(t, h.logs.String(), "token revoked")
	assert.Zero(t, h.svc.calls)
}

func TestImportMalformedCalendar(t *testing.T) {
	h := newHarness(t, validConfig)
	assert.Equal(t, ExitFailure, h.run("not a calendar", "-i", "-", h.configPath))
	assert.Zero(t, h.svc.calls)
}

func TestDryRunDoesNotAuthenticate(t *testing.T) {
	h := newHarness(t, `calendar:
  api_url: ""
`)

	require.Equal(t, ExitOK, h.run(lunchICS, "-n", "-i", "-", h.configPath), h.logs.String())
	assert.Zero(t, h.built)

	dec := json.NewDecoder(&h.stdout)
	var first struct {
		UID   string     `json:"uid"`
		Entry gcal.Entry `json:"entry"`
	}
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, "lunch-1@example.com", first.UID)
	assert.Equal(t, "2009-06-01T12:00:00.000Z", first.Entry.When[0].StartTime)
}

func TestFirstRunWritesTemplate(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, ExitFailure, h.run("", "-l", h.configPath))
	assert.FileExists(t, h.configPath)
	assert.Contains(t, h.logs.String(), config.ErrMissingEmail.Error())
}

func TestWorkersFlag(t *testing.T) {
	h := newHarness(t, validConfig)
	require.Equal(t, ExitOK, h.run(lunchICS, "-w", "4", "-v", "-i", "-", h.configPath))
	assert.Len(t, h.svc.entries, 2)
	assert.Contains(t, h.logs.String(), "level=DEBUG")
}
