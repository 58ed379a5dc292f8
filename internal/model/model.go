package model

import (
	"fmt"
	"time"
)

const (
	// MinStage and MaxStage bound the stages the rotation knows about.
	MinStage = 1
	MaxStage = 8

	forecastPrefix = "(forecast) "
)

// Interval is a half-open time range [Start, End) with Start strictly before End.
// Values are only produced by NewInterval and Intersect.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval returns the interval [start, end) and true, or false when
// start is not strictly before end.
func NewInterval(start, end time.Time) (Interval, bool) {
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Intersect returns the overlap of a and b. Intervals that only touch
// (a.End == b.Start) do not intersect.
func (a Interval) Intersect(b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return NewInterval(start, end)
}

// Equal reports whether both bounds denote the same instants, regardless of location.
func (a Interval) Equal(b Interval) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// Contains reports whether b lies entirely within a.
func (a Interval) Contains(b Interval) bool {
	return !b.Start.Before(a.Start) && !b.End.After(a.End)
}

func (a Interval) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

func (a Interval) String() string {
	return a.Start.Format(time.RFC3339) + "/" + a.End.Format(time.RFC3339)
}

// StageWindow is an announced (or forecast) period during which a stage applies.
type StageWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Stage    int       `json:"stage"`
	Forecast bool      `json:"forecast"`
}

// NewStageWindow builds a window, rolling end over to the following day when
// it does not come after start (e.g. 22:00 - 00:30).
func NewStageWindow(start, end time.Time, stage int) StageWindow {
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return StageWindow{Start: start, End: end, Stage: stage}
}

// ValidStage reports whether the rotation covers stage.
func ValidStage(stage int) bool {
	return stage >= MinStage && stage <= MaxStage
}

func (w StageWindow) Interval() (Interval, bool) {
	return NewInterval(w.Start, w.End)
}

// Title is the calendar summary for events derived from w.
func (w StageWindow) Title() string {
	title := fmt.Sprintf("Load shedding (%d)", w.Stage)
	if w.Forecast {
		return forecastPrefix + title
	}
	return title
}

// OutageEvent is a resolved period without power for one zone.
type OutageEvent struct {
	Interval Interval `json:"interval"`
	Title    string   `json:"title"`
	Forecast bool     `json:"forecast"`
}
