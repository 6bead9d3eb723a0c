package scheduling

import (
	"iter"
	"time"
)

// Mode is the outcome class of an availability decision.
type Mode string

const (
	// ModePrimary means the slot is free.
	ModePrimary Mode = "primary"
	// ModeOverbook means exactly one appointment already starts here and a
	// single supplementary booking is allowed.
	ModeOverbook Mode = "overbook"
	// ModeBlocked means a schedule block covers part of the slot.
	ModeBlocked Mode = "blocked"
	// ModeUnavailable covers every other refusal.
	ModeUnavailable Mode = "unavailable"
)

// MaxPerStart is the number of active appointments allowed to share one
// start time: the primary booking plus one overbook.
const MaxPerStart = 2

// Decision is the resolver's verdict for one proposed slot.
type Decision struct {
	Bookable bool `json:"bookable"`
	Mode     Mode `json:"mode"`
}

func (d Decision) String() string {
	if d.Bookable {
		return "bookable(" + string(d.Mode) + ")"
	}
	return "refused(" + string(d.Mode) + ")"
}

var (
	decisionPrimary     = Decision{Bookable: true, Mode: ModePrimary}
	decisionOverbook    = Decision{Bookable: true, Mode: ModeOverbook}
	decisionBlocked     = Decision{Bookable: false, Mode: ModeBlocked}
	decisionUnavailable = Decision{Bookable: false, Mode: ModeUnavailable}
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Appointment is the part of a booking the resolver looks at.
type Appointment struct {
	ID       string
	Date     time.Time
	Start    TimeOfDay
	Duration int
	Status   Status
}

// Interval is the span the appointment occupies.
func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.Start.Add(a.Duration)}
}

// Active reports whether the appointment holds its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Block is a span in which nothing may be booked.
type Block struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

// Interval is the span the block covers.
func (b Block) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// Request is a proposed booking.
type Request struct {
	Date     time.Time
	Start    TimeOfDay
	Duration int
}

// Interval is the span the proposed booking would occupy.
func (r Request) Interval() Interval {
	return Interval{Start: r.Start, End: r.Start.Add(r.Duration)}
}

func (r Request) wellFormed() bool {
	return r.Duration > 0 && r.Start >= 0 && int(r.Start)+r.Duration <= MinutesPerDay
}

// Policy carries the caller-specific rules layered on top of the calendar.
type Policy struct {
	// RejectPast refuses any slot whose start is not strictly after Now.
	RejectPast bool
	// Now is the reference instant. When zero, the current time is used.
	Now time.Time
	// Location is the clinic's zone used to anchor dates. Nil means UTC.
	Location *time.Location
}

// RejectPastAt builds the self-booking policy.
func RejectPastAt(now time.Time, loc *time.Location) Policy {
	return Policy{RejectPast: true, Now: now, Location: loc}
}

func (p Policy) startsInFuture(r Request) bool {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	return r.Start.On(r.Date, p.Location).After(now)
}

// Resolve decides whether req can be booked given the day's appointments and
// blocks. Rules apply in order and the first match wins:
//
//  1. malformed request: unavailable
//  2. past-time policy enabled and start not in the future: unavailable
//  3. any block intersects the slot: blocked
//  4. an active appointment with a different start intersects the slot: unavailable
//  5. active appointments starting exactly at req.Start: 0 primary, 1 overbook, more unavailable
//
// Cancelled appointments and entries dated on another day are ignored.
func Resolve(req Request, appointments []Appointment, blocks []Block, policy Policy) Decision {
	if !req.wellFormed() {
		return decisionUnavailable
	}
	if policy.RejectPast && !policy.startsInFuture(req) {
		return decisionUnavailable
	}

	proposed := req.Interval()
	for _, b := range blocks {
		if SameDate(b.Date, req.Date) && b.Interval().Overlaps(proposed) {
			return decisionBlocked
		}
	}

	coincident := 0
	for _, a := range appointments {
		if !a.Active() || !SameDate(a.Date, req.Date) {
			continue
		}
		if a.Start == req.Start {
			coincident++
			continue
		}
		if a.Interval().Overlaps(proposed) {
			return decisionUnavailable
		}
	}

	switch {
	case coincident == 0:
		return decisionPrimary
	case coincident < MaxPerStart:
		return decisionOverbook
	default:
		return decisionUnavailable
	}
}

// Evaluate resolves every generated slot of the day. Like GenerateSlots the
// sequence is lazy and restartable.
func Evaluate(date time.Time, duration int, hours WorkingHours, appointments []Appointment, blocks []Block, policy Policy) iter.Seq2[TimeOfDay, Decision] {
	return func(yield func(TimeOfDay, Decision) bool) {
		for start := range GenerateSlots(duration, hours) {
			req := Request{Date: date, Start: start, Duration: duration}
			if !yield(start, Resolve(req, appointments, blocks, policy)) {
				return
			}
		}
	}
}
