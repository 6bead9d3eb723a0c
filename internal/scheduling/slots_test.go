package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicDay() WorkingHours {
	return WorkingHours{Open: Clock(9, 0), Close: Clock(18, 0)}
}

func TestGenerateSlotsHourlyGrid(t *testing.T) {
	hours := clinicDay().WithGranularity(60)

	got := Slots(60, hours)

	require.Len(t, got, 9)
	assert.Equal(t, Clock(9, 0), got[0])
	assert.Equal(t, Clock(17, 0), got[len(got)-1])
}

func TestGenerateSlotsLongServiceOnHourlyGrid(t *testing.T) {
	got := Slots(90, clinicDay().WithGranularity(60))

	// 16:00 + 90 = 17:30 fits, 17:00 + 90 = 18:30 does not.
	require.Len(t, got, 8)
	assert.Equal(t, Clock(16, 0), got[len(got)-1])
}

func TestGenerateSlotsMatchDuration(t *testing.T) {
	got := Slots(30, clinicDay())

	require.Len(t, got, 18)
	assert.Equal(t, Clock(9, 30), got[1])
	assert.Equal(t, Clock(17, 30), got[17])
}

func TestGenerateSlotsAlignsToOpening(t *testing.T) {
	hours := WorkingHours{Open: Clock(8, 30), Close: Clock(11, 0), Granularity: 60}

	assert.Equal(t, []TimeOfDay{Clock(8, 30), Clock(9, 30)}, Slots(60, hours))
}

func TestGenerateSlotsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		hours    WorkingHours
	}{
		{"duration longer than window", 600, clinicDay()},
		{"zero duration", 0, clinicDay()},
		{"negative duration", -30, clinicDay()},
		{"open equals close", 30, WorkingHours{Open: Clock(9, 0), Close: Clock(9, 0)}},
		{"open after close", 30, WorkingHours{Open: Clock(18, 0), Close: Clock(9, 0)}},
		{"close past midnight", 30, WorkingHours{Open: Clock(9, 0), Close: MinutesPerDay + 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Slots(tt.duration, tt.hours))
		})
	}
}

func TestGenerateSlotsBounds(t *testing.T) {
	windows := []WorkingHours{
		clinicDay(),
		{Open: Clock(7, 15), Close: Clock(12, 40)},
		{Open: 0, Close: MinutesPerDay},
	}
	for _, hours := range windows {
		for _, duration := range []int{15, 30, 45, 60, 90, 120} {
			for _, granularity := range []int{0, 15, 30, 60} {
				h := hours.WithGranularity(granularity)
				step := granularity
				if step == 0 {
					step = duration
				}
				prev := TimeOfDay(-1)
				for start := range GenerateSlots(duration, h) {
					assert.GreaterOrEqual(t, start, h.Open)
					assert.LessOrEqual(t, int(start)+duration, int(h.Close))
					assert.Zero(t, int(start-h.Open)%step, "start %s off grid", start)
					assert.Greater(t, start, prev)
					prev = start
				}
			}
		}
	}
}

func TestGenerateSlotsRestartable(t *testing.T) {
	seq := GenerateSlots(60, clinicDay().WithGranularity(60))

	var first, second []TimeOfDay
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	assert.Equal(t, first, second)

	var partial []TimeOfDay
	for s := range seq {
		partial = append(partial, s)
		if len(partial) == 2 {
			break
		}
	}
	assert.Equal(t, first[:2], partial)
}

func TestSlotPolicy(t *testing.T) {
	calendar := CalendarSlots(60)
	assert.Equal(t, 60, calendar.For(30))
	assert.Equal(t, 60, calendar.For(90))

	public := PublicSlots()
	assert.Equal(t, 30, public.For(30))
	assert.Equal(t, 90, public.For(90))

	custom := SlotPolicy{MatchDuration: true, PerDuration: map[int]int{90: 30}}
	assert.Equal(t, 30, custom.For(90))
	assert.Equal(t, 60, custom.For(60))

	assert.Equal(t, 45, SlotPolicy{}.For(45), "unset policy steps by duration")
	assert.Equal(t, 60, calendar.Apply(clinicDay(), 30).Granularity)
}

func TestWorkingHoursValidate(t *testing.T) {
	assert.NoError(t, clinicDay().Validate())
	assert.ErrorIs(t, WorkingHours{Open: Clock(10, 0), Close: Clock(9, 0)}.Validate(), ErrInvalidHours)
	assert.ErrorIs(t, WorkingHours{Open: Clock(9, 0), Close: Clock(10, 0), Granularity: -5}.Validate(), ErrInvalidHours)
}
