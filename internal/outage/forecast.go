package outage

import (
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"loadshedcal/internal/model"
)

// DefaultForecastDays is the number of whole days projected past the last
// announced window.
const DefaultForecastDays = 3

// Forecast projects last's stage forward: one window from last.End to the
// following local midnight, then one whole-day window for each of the next
// days calendar days. All returned windows are marked as forecasts.
func Forecast(last model.StageWindow, days int) ([]model.StageWindow, error) {
	loc := last.End.Location()
	y, m, d := last.End.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	out := []model.StageWindow{{
		Start:    last.End,
		End:      midnight,
		Stage:    last.Stage,
		Forecast: true,
	}}
	if days <= 0 {
		return out, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   days,
		Dtstart: midnight,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: daily rule: %w", err)
	}
	for _, start := range rule.All() {
		start = start.In(loc)
		out = append(out, model.StageWindow{
			Start:    start,
			End:      time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc),
			Stage:    last.Stage,
			Forecast: true,
		})
	}
	return out, nil
}

// Extend appends forecast windows after the latest window in windows. When
// now is already past that window the projection starts at now instead, so
// no forecast covers time that has gone by. days <= 0 disables the
// projection. The input is not modified.
func Extend(windows []model.StageWindow, now time.Time, days int) ([]model.StageWindow, error) {
	if len(windows) == 0 || days <= 0 {
		return windows, nil
	}

	last := windows[0]
	for _, w := range windows[1:] {
		if w.End.After(last.End) {
			last = w
		}
	}
	if anchor := now.In(last.End.Location()).Truncate(time.Minute); anchor.After(last.End) {
		last.End = anchor
	}

	projected, err := Forecast(last, days)
	if err != nil {
		return nil, err
	}
	out := slices.Clip(slices.Clone(windows))
	return append(out, projected...), nil
}
