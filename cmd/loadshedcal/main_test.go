package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestTimetableCommand(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	out, err := run(t, "--config", path, "timetable", "--stage", "3", "--zone", "2", "--date", "2023-04-11")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"2023-04-11  14:00 - 16:30",
		"2023-04-11  22:00 - 00:30",
		"2023-04-12  06:00 - 08:30",
		"2023-04-12  22:00 - 00:30",
	}, "\n")+"\n", out)
}

func TestTimetableCommandRejectsStage(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	_, err := run(t, "--config", path, "timetable", "--stage", "9", "--zone", "2")
	assert.Error(t, err)
}

func TestCalendarCommand(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"start": "2023-04-08T05:00", "end": "2023-04-08T22:00", "stage": "4"}]`))
	}))
	defer feed.Close()

	path := writeConfig(t, `
source:
  kind: json
  url: `+feed.URL+`
  cache_dir: `+t.TempDir()+`
log:
  level: error
`)

	out, err := run(t, "--config", path, "calendar", "--zone", "4", "--no-forecast")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "DTSTART:20230408T030000Z")
	assert.Contains(t, out, "SUMMARY:Load shedding (4)")

	out, err = run(t, "--config", path, "schedule", "--no-forecast")
	require.NoError(t, err)
	assert.Equal(t, "2023-04-08 05:00  2023-04-08 22:00  Load shedding (4)\n", out)
}

func TestCalendarCommandRequiresZone(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	_, err := run(t, "--config", path, "calendar")
	assert.Error(t, err)
}
