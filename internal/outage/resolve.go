// Package outage turns announced stage windows into per-zone outage events.
package outage

import (
	"loadshedcal/internal/model"
	"loadshedcal/internal/timetable"
)

// Resolve intersects every window with the timetable of zone at the window's
// stage. Events follow the order of windows, then of timetable blocks; the
// result is not re-sorted. Windows with a stage outside the rotation are
// skipped.
func Resolve(windows []model.StageWindow, zone int) []model.OutageEvent {
	var events []model.OutageEvent
	for _, w := range windows {
		events = append(events, ResolveWindow(w, zone)...)
	}
	return events
}

// ResolveWindow returns the events of a single window.
func ResolveWindow(w model.StageWindow, zone int) []model.OutageEvent {
	if !model.ValidStage(w.Stage) {
		return nil
	}
	span, ok := w.Interval()
	if !ok {
		return nil
	}

	var events []model.OutageEvent
	for _, block := range timetable.For(w.Stage, zone, w.Start) {
		overlap, ok := block.Intersect(span)
		if !ok {
			continue
		}
		events = append(events, model.OutageEvent{
			Interval: overlap,
			Title:    w.Title(),
			Forecast: w.Forecast,
		})
	}
	return events
}
