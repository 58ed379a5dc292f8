package timetable

import (
	"fmt"
	"time"

	"loadshedcal/internal/model"
)

// BlockDuration is how long a zone is modelled to be off once its slot starts.
// It runs half an hour past the nominal slot.
const BlockDuration = SlotHours*time.Hour + 30*time.Minute

// Day returns the outage blocks of zone at stage that start on the calendar
// date of date, in date's location, in chronological order.
func Day(stage, zone int, date time.Time) []model.Interval {
	y, m, d := date.Date()
	loc := date.Location()

	var out []model.Interval
	for i, slot := range Rotation(stage, d) {
		if !slot.Contains(zone) {
			continue
		}
		start := time.Date(y, m, d, i*SlotHours, 0, 0, 0, loc)
		block, ok := model.NewInterval(start, start.Add(BlockDuration))
		if !ok {
			panic(fmt.Sprintf("timetable: invalid block at %s", start))
		}
		out = append(out, block)
	}
	return out
}

// For returns the candidate outage blocks of zone at stage for the date of
// ref and the following date, so that stage windows running past midnight
// see the next day's rotation too.
func For(stage, zone int, ref time.Time) []model.Interval {
	y, m, d := ref.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, ref.Location())

	out := Day(stage, zone, ref)
	return append(out, Day(stage, zone, next)...)
}
