// Package timetable implements the municipal zone rotation: which zones are
// shed in each two-hour slot of a day, and the resulting outage blocks for a
// single zone.
package timetable

import (
	"sort"

	"loadshedcal/internal/model"
)

// Rotation scheme constants.
const (
	// Zones is the number of zones; zone ids run 1..Zones.
	Zones = 16
	// Columns is the number of distinct day columns before the rotation repeats.
	Columns = 16
	// SlotsPerDay is the number of two-hour slots in a day.
	SlotsPerDay = 12
	// SlotHours is the nominal width of a slot.
	SlotHours = 2
	// columnsPerShift is how many columns share the same shift.
	columnsPerShift = 4
)

// groupStarts holds the starting zone-group offsets; stage N activates the first N.
var groupStarts = [model.MaxStage]int{0, 8, 12, 4, 1, 9, 13, 5}

// Slot is the ascending set of zone ids without power during one slot.
type Slot []int

// Contains reports whether zone is shed in this slot.
func (s Slot) Contains(zone int) bool {
	i := sort.SearchInts(s, zone)
	return i < len(s) && s[i] == zone
}

// Column returns the rotation column (0..Columns-1) of a 1-based day of month.
func Column(dayOfMonth int) int {
	return (dayOfMonth - 1) % Columns
}

// Offset returns how far the zone sequence has advanced at the start of the day.
func Offset(dayOfMonth int) int {
	return Column(dayOfMonth) * SlotsPerDay
}

// Shift is the extra advance applied every columnsPerShift columns.
func Shift(dayOfMonth int) int {
	return Column(dayOfMonth) / columnsPerShift
}

// InitialZonesForStage returns the group start offsets active at stage.
// stage must be within model.MinStage..model.MaxStage.
func InitialZonesForStage(stage int) []int {
	out := make([]int, stage)
	copy(out, groupStarts[:stage])
	return out
}

// Rotation returns, for each slot of the day, the zones shed at stage.
// The result depends only on stage and dayOfMonth.
func Rotation(stage, dayOfMonth int) [SlotsPerDay]Slot {
	base := (Shift(dayOfMonth) + Offset(dayOfMonth)) % Zones
	groups := InitialZonesForStage(stage)

	var slots [SlotsPerDay]Slot
	for i := range slots {
		slot := make(Slot, 0, len(groups))
		for _, g := range groups {
			slot = append(slot, zoneAt(base+g+i))
		}
		sort.Ints(slot)
		slots[i] = slot
	}
	return slots
}

// zoneAt is the n-th element (0-based) of the cycle 1, 2, ..., Zones, 1, ...
func zoneAt(n int) int {
	return n%Zones + 1
}
