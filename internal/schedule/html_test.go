package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const announcementPage = `<!DOCTYPE html>
<html><body>
<div class="header">Stage 8: 00:00 - 02:00</div>
<div class="section-pull wide">
  <p><strong>Sunday, 9 April</strong></p>
  <p>Stage 4: 05:00 - 22:00</p>
  <p>Stage 2: 22:00 - 05:00</p>
  <p>Monday 10 April</p>
  <p>Stage 4: underway until 16:00</p>
  <p>Stage 0 (no load-shedding): 16:00 - 22:00</p>
  <script>var x = "Stage 5: 01:00 - 02:00";</script>
</div>
</body></html>`

func TestParseHTML(t *testing.T) {
	now := time.Date(2023, time.April, 10, 9, 41, 37, 0, sast)

	windows, err := ParseHTML(strings.NewReader(announcementPage), "", sast, now)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	assert.Equal(t, time.Date(2023, time.April, 9, 5, 0, 0, 0, sast), windows[0].Start)
	assert.Equal(t, time.Date(2023, time.April, 9, 22, 0, 0, 0, sast), windows[0].End)
	assert.Equal(t, 4, windows[0].Stage)

	assert.Equal(t, time.Date(2023, time.April, 9, 22, 0, 0, 0, sast), windows[1].Start)
	assert.Equal(t, time.Date(2023, time.April, 10, 5, 0, 0, 0, sast), windows[1].End)
	assert.Equal(t, 2, windows[1].Stage)

	assert.Equal(t, time.Date(2023, time.April, 10, 9, 41, 0, 0, sast), windows[2].Start)
	assert.Equal(t, time.Date(2023, time.April, 10, 16, 0, 0, 0, sast), windows[2].End)
	assert.Equal(t, 4, windows[2].Stage)
}

func TestParseHTMLMissingContainer(t *testing.T) {
	_, err := ParseHTML(strings.NewReader(`<html><body><p>nothing</p></body></html>`), "", sast, time.Now())
	assert.ErrorIs(t, err, ErrMarkupNotFound)
}

func TestParseHTMLCustomSelector(t *testing.T) {
	page := `<section class="status"><p>3 May</p><p>Stage 1: 10:00 - 12:30</p></section>`
	now := time.Date(2023, time.May, 1, 0, 0, 0, 0, sast)

	windows, err := ParseHTML(strings.NewReader(page), "section.status", sast, now)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2023, time.May, 3, 12, 30, 0, 0, sast), windows[0].End)
}

const navPage = `<html><body>
<div id="nav"><p>Saturday 8 April</p><p>Stage 6: 05:00 - 22:00</p></div>
<div id="real"><p>Nothing announced</p></div>
<div id="next"><section><p>Sunday 9 April</p></section><p>Stage 2: 10:00 - 12:00</p></div>
</body></html>`

func TestParseHTMLIDSelector(t *testing.T) {
	now := time.Date(2023, time.April, 8, 0, 0, 0, 0, sast)

	windows, err := ParseHTML(strings.NewReader(navPage), "#real", sast, now)
	require.NoError(t, err)
	assert.Empty(t, windows)

	windows, err = ParseHTML(strings.NewReader(navPage), "div#next", sast, now)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 2, windows[0].Stage)
	assert.Equal(t, time.Date(2023, time.April, 9, 10, 0, 0, 0, sast), windows[0].Start)
}

func TestParseHTMLSelectorMatchesNothing(t *testing.T) {
	now := time.Date(2023, time.April, 8, 0, 0, 0, 0, sast)

	for _, sel := range []string{"div#missing", "[data-status]", "body > section"} {
		_, err := ParseHTML(strings.NewReader(navPage), sel, sast, now)
		assert.ErrorIs(t, err, ErrMarkupNotFound, sel)
	}
}

func TestParseHTMLBadSelector(t *testing.T) {
	_, err := ParseHTML(strings.NewReader(navPage), "div[", sast, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMarkupNotFound)
}

func TestParseHTMLStageBeforeDateIsSkipped(t *testing.T) {
	page := `<div class="section-pull"><p>Stage 3: 10:00 - 12:00</p><p>4 May</p><p>Stage 1: 10:00 - 12:00</p></div>`
	now := time.Date(2023, time.May, 1, 0, 0, 0, 0, sast)

	windows, err := ParseHTML(strings.NewReader(page), "", sast, now)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 1, windows[0].Stage)
}

func TestParseDateLineYearInference(t *testing.T) {
	tests := []struct {
		name string
		line string
		now  time.Time
		want time.Time
	}{
		{"same year", "Tuesday, 11 April", time.Date(2023, time.April, 10, 0, 0, 0, 0, sast), time.Date(2023, time.April, 11, 0, 0, 0, 0, sast)},
		{"into next year", "2 January", time.Date(2023, time.December, 28, 0, 0, 0, 0, sast), time.Date(2024, time.January, 2, 0, 0, 0, 0, sast)},
		{"from previous year", "30 December", time.Date(2024, time.January, 2, 0, 0, 0, 0, sast), time.Date(2023, time.December, 30, 0, 0, 0, 0, sast)},
		{"abbreviated month", "5 Sep", time.Date(2023, time.September, 1, 0, 0, 0, 0, sast), time.Date(2023, time.September, 5, 0, 0, 0, 0, sast)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseDateLine(tc.line, tc.now, sast)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDateLineRejects(t *testing.T) {
	now := time.Date(2023, time.April, 10, 0, 0, 0, 0, sast)
	for _, line := range []string{"31 April", "12 Smarch", "Stage 4: 05:00 - 22:00", "April 12", ""} {
		_, ok := parseDateLine(line, now, sast)
		assert.False(t, ok, line)
	}
}

func TestStageLinePattern(t *testing.T) {
	m := stageLineRe.FindStringSubmatch("Stage 4: 05:00 - 22:00")
	require.NotNil(t, m)
	assert.Equal(t, []string{"4", "05:00", "22:00"}, m[1:])

	m = stageLineRe.FindStringSubmatch("Stage 6: underway until 22:00")
	require.NotNil(t, m)
	assert.Equal(t, []string{"6", underwayUntil, "22:00"}, m[1:])

	m = stageLineRe.FindStringSubmatch("Stage 0 (no load-shedding): 05:00 22:00")
	require.NotNil(t, m)
	assert.Equal(t, []string{"0", "05:00", "22:00"}, m[1:])

	assert.Nil(t, stageLineRe.FindStringSubmatch("Stage four: 05:00 - 22:00"))
}
