package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadshedcal/internal/model"
)

var sast = time.FixedZone("SAST", 2*60*60)

func days(f func(int) int) []int {
	out := make([]int, 0, 31)
	for d := 1; d <= 31; d++ {
		out = append(out, f(d))
	}
	return out
}

func TestColumn(t *testing.T) {
	assert.Equal(t, []int{
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14,
	}, days(Column))

	for d := 1; d+Columns <= 31; d++ {
		assert.Equal(t, Column(d), Column(d+Columns), "day %d", d)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, []int{
		0, 12, 24, 36, 48, 60, 72, 84, 96, 108, 120, 132, 144, 156, 168, 180,
		0, 12, 24, 36, 48, 60, 72, 84, 96, 108, 120, 132, 144, 156, 168,
	}, days(Offset))
}

func TestShift(t *testing.T) {
	assert.Equal(t, []int{
		0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
		0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3,
	}, days(Shift))
}

func TestInitialZonesForStage(t *testing.T) {
	want := [][]int{
		{0},
		{0, 8},
		{0, 8, 12},
		{0, 8, 12, 4},
		{0, 8, 12, 4, 1},
		{0, 8, 12, 4, 1, 9},
		{0, 8, 12, 4, 1, 9, 13},
		{0, 8, 12, 4, 1, 9, 13, 5},
	}
	for stage := model.MinStage; stage <= model.MaxStage; stage++ {
		got := InitialZonesForStage(stage)
		assert.Len(t, got, stage)
		assert.Equal(t, want[stage-1], got)
	}
}

func TestInitialZonesForStageReturnsCopy(t *testing.T) {
	got := InitialZonesForStage(2)
	got[0] = 99
	assert.Equal(t, []int{0, 8}, InitialZonesForStage(2))
}

func TestRotationStage8Day2(t *testing.T) {
	a := Slot{1, 2, 5, 6, 9, 10, 13, 14}
	b := Slot{2, 3, 6, 7, 10, 11, 14, 15}
	c := Slot{3, 4, 7, 8, 11, 12, 15, 16}
	d := Slot{1, 4, 5, 8, 9, 12, 13, 16}

	want := [SlotsPerDay]Slot{a, b, c, d, a, b, c, d, a, b, c, d}
	assert.Equal(t, want, Rotation(8, 2))
}

func TestRotationIsDeterministic(t *testing.T) {
	for stage := model.MinStage; stage <= model.MaxStage; stage++ {
		for day := 1; day <= 31; day++ {
			first := Rotation(stage, day)
			second := Rotation(stage, day)
			require.Equal(t, first, second, "stage %d day %d", stage, day)

			for i, slot := range first {
				require.Len(t, slot, stage, "stage %d day %d slot %d", stage, day, i)
				require.IsIncreasing(t, []int(slot))
				for _, zone := range slot {
					require.True(t, zone >= 1 && zone <= Zones)
				}
			}
		}
	}
}

func TestSlotContains(t *testing.T) {
	s := Slot{1, 4, 5, 8}
	assert.True(t, s.Contains(4))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(0))
	assert.False(t, s.Contains(17))
}

func block(y int, m time.Month, d, hour int) model.Interval {
	start := time.Date(y, m, d, hour, 0, 0, 0, sast)
	return model.Interval{Start: start, End: start.Add(BlockDuration)}
}

func assertIntervals(t *testing.T, want, got []model.Interval) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "interval %d: want %s got %s", i, want[i], got[i])
	}
}

func TestForStage3Zone2(t *testing.T) {
	ref := time.Date(2023, time.April, 11, 9, 45, 0, 0, sast)

	got := For(3, 2, ref)

	assertIntervals(t, []model.Interval{
		block(2023, time.April, 11, 14),
		block(2023, time.April, 11, 22),
		block(2023, time.April, 12, 6),
		block(2023, time.April, 12, 22),
	}, got)

	assert.Equal(t, time.Date(2023, time.April, 12, 0, 30, 0, 0, sast), got[1].End)
	assert.Equal(t, time.Date(2023, time.April, 13, 0, 30, 0, 0, sast), got[3].End)
}

func TestForUsesNextMonthRotationAfterMonthEnd(t *testing.T) {
	ref := time.Date(2023, time.January, 31, 0, 0, 0, 0, sast)

	assertIntervals(t, []model.Interval{
		block(2023, time.January, 31, 12),
		block(2023, time.January, 31, 20),
		block(2023, time.February, 1, 2),
		block(2023, time.February, 1, 10),
		block(2023, time.February, 1, 18),
	}, For(3, 2, ref))
}

func TestForIsChronological(t *testing.T) {
	ref := time.Date(2024, time.July, 14, 18, 0, 0, 0, sast)
	for stage := model.MinStage; stage <= model.MaxStage; stage++ {
		for zone := 1; zone <= Zones; zone++ {
			got := For(stage, zone, ref)
			require.LessOrEqual(t, len(got), 2*SlotsPerDay)
			for i := 1; i < len(got); i++ {
				require.True(t, got[i-1].Start.Before(got[i].Start))
			}
			for _, b := range got {
				require.Equal(t, BlockDuration, b.Duration())
			}
		}
	}
}

func TestDayUnknownZoneIsEmpty(t *testing.T) {
	ref := time.Date(2024, time.July, 14, 0, 0, 0, 0, sast)
	assert.Empty(t, Day(8, 0, ref))
	assert.Empty(t, Day(8, Zones+1, ref))
}
