package schedule

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	appLog "loadshedcal/internal/log"
	"loadshedcal/internal/model"
)

// DefaultSelector locates the announcement block on the municipal page.
const DefaultSelector = "div.section-pull"

// ErrMarkupNotFound is returned when the page has no element matching the selector.
var ErrMarkupNotFound = errors.New("schedule: announcement markup not found")

var (
	dateLineRe  = regexp.MustCompile(`(\d{1,2}) (\w+)$`)
	stageLineRe = regexp.MustCompile(`Stage (\d)(?: \(no load-shedding\))?: (underway until|\d{2}:\d{2}) (?:- )?(\d{2}:\d{2})`)
)

const underwayUntil = "underway until"

// CompileSelector parses a CSS selector, defaulting to DefaultSelector.
// The same syntax is accepted by the browser source.
func CompileSelector(selector string) (cascadia.Sel, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("schedule: selector %q: %w", selector, err)
	}
	return sel, nil
}

// yearWindow bounds how far a year-less date may sit from now before it is
// attributed to the neighbouring year.
const yearWindow = 6 * 30 * 24 * time.Hour

// ParseHTML scans the text of the first element matching selector line by
// line. "<day> <month>" lines set the current date; "Stage N: HH:MM - HH:MM"
// lines become windows on that date. now supplies the year and the start of
// "underway until" lines. Stage lines without a preceding date, and stages
// outside the rotation, are logged and skipped.
func ParseHTML(r io.Reader, selector string, loc *time.Location, now time.Time) ([]model.StageWindow, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse page: %w", err)
	}
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	container := cascadia.Query(doc, sel)
	if container == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarkupNotFound, sel)
	}

	now = now.In(loc)
	var (
		windows []model.StageWindow
		date    time.Time
		hasDate bool
	)
	for _, line := range textLines(container) {
		if d, ok := parseDateLine(line, now, loc); ok {
			date, hasDate = d, true
		}
		m := stageLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !hasDate {
			appLog.Warn("schedule: stage line before any date", "line", line)
			continue
		}
		w, err := windowFromMatch(m, date, now, loc)
		if err != nil {
			appLog.Warn("schedule: skipping stage line", "line", line, "reason", err.Error())
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func windowFromMatch(m []string, date, now time.Time, loc *time.Location) (model.StageWindow, error) {
	stage, err := parseStage(m[1])
	if err != nil {
		return model.StageWindow{}, err
	}

	y, mo, d := date.Date()
	var start time.Time
	if m[2] == underwayUntil {
		start = time.Date(y, mo, d, now.Hour(), now.Minute(), 0, 0, loc)
	} else {
		h, mm, err := parseClock(m[2])
		if err != nil {
			return model.StageWindow{}, err
		}
		start = time.Date(y, mo, d, h, mm, 0, 0, loc)
	}

	h, mm, err := parseClock(m[3])
	if err != nil {
		return model.StageWindow{}, err
	}
	end := time.Date(y, mo, d, h, mm, 0, 0, loc)

	return model.NewStageWindow(start, end, stage), nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// parseDateLine reads a trailing "<day> <month>" and places it in the year
// closest to now.
func parseDateLine(line string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := dateLineRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := parseMonth(m[2])
	if !ok {
		return time.Time{}, false
	}

	date := time.Date(now.Year(), month, day, 0, 0, 0, 0, loc)
	if date.Day() != day {
		return time.Time{}, false
	}
	switch {
	case now.Sub(date) > yearWindow:
		date = date.AddDate(1, 0, 0)
	case date.Sub(now) > yearWindow:
		date = date.AddDate(-1, 0, 0)
	}
	return date, true
}

func parseMonth(name string) (time.Month, bool) {
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, name); err == nil {
			return t.Month(), true
		}
	}
	return 0, false
}

// textLines returns the non-blank lines of every text node under n, in
// document order, skipping script and style content.
func textLines(n *html.Node) []string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			for _, l := range strings.Split(n.Data, "\n") {
				if l = strings.TrimSpace(l); l != "" {
					lines = append(lines, l)
				}
			}
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return lines
}
