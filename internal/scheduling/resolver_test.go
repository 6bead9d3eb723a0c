package scheduling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func appt(id string, start TimeOfDay, duration int) Appointment {
	return Appointment{ID: id, Date: day, Start: start, Duration: duration, Status: StatusConfirmed}
}

func req(start TimeOfDay, duration int) Request {
	return Request{Date: day, Start: start, Duration: duration}
}

func TestResolveEmptyDayHourlyGridIsPrimary(t *testing.T) {
	hours := clinicDay().WithGranularity(60)

	count := 0
	for start, decision := range Evaluate(day, 60, hours, nil, nil, Policy{}) {
		assert.Equal(t, decisionPrimary, decision, "slot %s", start)
		count++
	}
	assert.Equal(t, 9, count)
}

func TestResolveOverbookProgression(t *testing.T) {
	hours := clinicDay().WithGranularity(60)
	first := []Appointment{appt("a1", Clock(10, 0), 60)}

	for start, decision := range Evaluate(day, 60, hours, first, nil, Policy{}) {
		if start == Clock(10, 0) {
			assert.Equal(t, Decision{Bookable: true, Mode: ModeOverbook}, decision)
			continue
		}
		assert.Equal(t, Decision{Bookable: true, Mode: ModePrimary}, decision, "slot %s", start)
	}

	second := append(first, appt("a2", Clock(10, 0), 60))
	assert.Equal(t, Decision{Bookable: false, Mode: ModeUnavailable}, Resolve(req(Clock(10, 0), 60), second, nil, Policy{}))
	assert.Equal(t, decisionPrimary, Resolve(req(Clock(11, 0), 60), second, nil, Policy{}))
}

func TestResolveBlockScenario(t *testing.T) {
	blocks := []Block{{Date: day, Start: Clock(13, 0), End: Clock(14, 0)}}

	assert.Equal(t, Decision{Bookable: false, Mode: ModeBlocked}, Resolve(req(Clock(13, 30), 30), nil, blocks, Policy{}))
	assert.Equal(t, decisionPrimary, Resolve(req(Clock(12, 0), 60), nil, blocks, Policy{}), "ends exactly at block start")
	assert.Equal(t, decisionBlocked, Resolve(req(Clock(12, 30), 60), nil, blocks, Policy{}))
	assert.Equal(t, decisionPrimary, Resolve(req(Clock(14, 0), 30), nil, blocks, Policy{}))
}

func TestResolvePartialOverlapScenario(t *testing.T) {
	existing := []Appointment{appt("long", Clock(9, 0), 90)}

	assert.Equal(t, decisionUnavailable, Resolve(req(Clock(10, 0), 60), existing, nil, Policy{}))
	assert.Equal(t, decisionPrimary, Resolve(req(Clock(10, 30), 60), existing, nil, Policy{}))
	assert.Equal(t, decisionOverbook, Resolve(req(Clock(9, 0), 60), existing, nil, Policy{}), "same start overbooks even with a shorter duration")
}

func TestResolveBlocksDominate(t *testing.T) {
	blocks := []Block{{Date: day, Start: Clock(10, 0), End: Clock(11, 0)}}
	stacked := []Appointment{appt("a1", Clock(10, 0), 60), appt("a2", Clock(10, 0), 60)}

	assert.Equal(t, decisionBlocked, Resolve(req(Clock(10, 0), 60), nil, blocks, Policy{}))
	assert.Equal(t, decisionBlocked, Resolve(req(Clock(10, 0), 60), stacked[:1], blocks, Policy{}))
	assert.Equal(t, decisionBlocked, Resolve(req(Clock(10, 0), 60), stacked, blocks, Policy{}))
}

func TestResolveIgnoresCancelled(t *testing.T) {
	live := []Appointment{appt("a1", Clock(10, 0), 60)}
	cancelled := appt("gone", Clock(10, 0), 60)
	cancelled.Status = StatusCancelled
	overlappingCancelled := appt("gone2", Clock(10, 30), 60)
	overlappingCancelled.Status = StatusCancelled

	base := Resolve(req(Clock(10, 0), 60), live, nil, Policy{})
	withCancelled := Resolve(req(Clock(10, 0), 60), append(live, cancelled, overlappingCancelled), nil, Policy{})

	assert.Equal(t, base, withCancelled)
	assert.Equal(t, decisionOverbook, withCancelled)
}

func TestResolveIgnoresOtherDates(t *testing.T) {
	tomorrow := day.AddDate(0, 0, 1)
	other := []Appointment{{ID: "x", Date: tomorrow, Start: Clock(10, 0), Duration: 60, Status: StatusPending}}
	blocks := []Block{{Date: tomorrow, Start: 0, End: MinutesPerDay}}

	assert.Equal(t, decisionPrimary, Resolve(req(Clock(10, 0), 60), other, blocks, Policy{}))
}

func TestResolvePendingCounts(t *testing.T) {
	pending := appt("p", Clock(10, 0), 60)
	pending.Status = StatusPending

	assert.Equal(t, decisionOverbook, Resolve(req(Clock(10, 0), 60), []Appointment{pending}, nil, Policy{}))
}

func TestResolveMalformedNeverBookable(t *testing.T) {
	tests := []Request{
		req(Clock(10, 0), 0),
		req(Clock(10, 0), -30),
		req(-10, 30),
		req(Clock(23, 30), 60),
	}
	for _, r := range tests {
		t.Run(fmt.Sprintf("%s/%d", r.Start, r.Duration), func(t *testing.T) {
			got := Resolve(r, nil, nil, Policy{})
			assert.False(t, got.Bookable)
			assert.Equal(t, ModeUnavailable, got.Mode)
		})
	}
}

func TestResolvePastTimePolicy(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	policy := RejectPastAt(now, loc)

	assert.Equal(t, decisionUnavailable, Resolve(req(Clock(9, 0), 30), nil, nil, policy))
	assert.Equal(t, decisionUnavailable, Resolve(req(Clock(10, 0), 30), nil, nil, policy), "start equal to now is not in the future")
	assert.Equal(t, decisionPrimary, Resolve(req(Clock(10, 30), 30), nil, nil, policy))

	blocks := []Block{{Date: day, Start: Clock(8, 0), End: Clock(9, 30)}}
	assert.Equal(t, decisionUnavailable, Resolve(req(Clock(9, 0), 30), nil, blocks, policy), "past check wins over block")

	assert.Equal(t, decisionPrimary, Resolve(req(Clock(9, 0), 30), nil, nil, Policy{}), "staff calendar books past slots")

	// Same instant read in UTC is 14:00, so 10:30 UTC is already past.
	utcPolicy := RejectPastAt(now, time.UTC)
	assert.Equal(t, decisionUnavailable, Resolve(req(Clock(10, 30), 30), nil, nil, utcPolicy))
}

func TestResolveDeterministic(t *testing.T) {
	appointments := []Appointment{
		appt("a", Clock(9, 0), 90),
		appt("b", Clock(12, 0), 60),
		appt("c", Clock(12, 0), 30),
	}
	blocks := []Block{{Date: day, Start: Clock(15, 0), End: Clock(16, 0)}}

	for start := range GenerateSlots(30, clinicDay()) {
		r := req(start, 30)
		first := Resolve(r, appointments, blocks, Policy{})
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Resolve(r, appointments, blocks, Policy{}))
		}
	}
}

func TestResolveNeverTripleBooks(t *testing.T) {
	var booked []Appointment
	start := Clock(11, 0)
	for i := 0; i < 5; i++ {
		decision := Resolve(req(start, 60), booked, nil, Policy{})
		if !decision.Bookable {
			break
		}
		booked = append(booked, appt(fmt.Sprintf("a%d", i), start, 60))
	}
	assert.Len(t, booked, MaxPerStart)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "bookable(overbook)", decisionOverbook.String())
	assert.Equal(t, "refused(blocked)", decisionBlocked.String())
}
