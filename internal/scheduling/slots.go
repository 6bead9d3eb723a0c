package scheduling

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// ErrInvalidHours is returned when working hours do not describe a window.
var ErrInvalidHours = errors.New("scheduling: invalid working hours")

// WorkingHours is the window in which appointments may be offered on a day,
// plus the step between candidate start times.
type WorkingHours struct {
	Open  TimeOfDay `json:"open"`
	Close TimeOfDay `json:"close"`
	// Granularity is the step between candidate starts in minutes. Zero or
	// less means "step by the requested duration".
	Granularity int `json:"granularity_minutes,omitempty"`
}

// Validate checks that the window is well formed.
func (h WorkingHours) Validate() error {
	if !h.Open.Valid() || !h.Close.Valid() || h.Open >= h.Close {
		return fmt.Errorf("%w: %s-%s", ErrInvalidHours, h.Open, h.Close)
	}
	if h.Granularity < 0 {
		return fmt.Errorf("%w: negative granularity %d", ErrInvalidHours, h.Granularity)
	}
	return nil
}

// Window returns the hours as an interval.
func (h WorkingHours) Window() Interval {
	return Interval{Start: h.Open, End: h.Close}
}

// WithGranularity returns a copy of h stepping by the given minutes.
func (h WorkingHours) WithGranularity(minutes int) WorkingHours {
	h.Granularity = minutes
	return h
}

// GenerateSlots yields every candidate start t = Open + k*step such that an
// appointment of the given duration fits, t+duration <= Close. Starts come
// out in ascending order. The sequence is lazy and can be ranged over more
// than once. A non-positive duration or an empty window yields nothing.
func GenerateSlots(duration int, hours WorkingHours) iter.Seq[TimeOfDay] {
	return func(yield func(TimeOfDay) bool) {
		if duration <= 0 || hours.Validate() != nil {
			return
		}
		step := hours.Granularity
		if step <= 0 {
			step = duration
		}
		for t := hours.Open; int(t)+duration <= int(hours.Close); t = t.Add(step) {
			if !yield(t) {
				return
			}
		}
	}
}

// Slots collects GenerateSlots into a slice.
func Slots(duration int, hours WorkingHours) []TimeOfDay {
	return slices.Collect(GenerateSlots(duration, hours))
}

// SlotPolicy picks the slot granularity for a duration class. The staff
// calendar uses a fixed grid; the public page steps by the duration itself.
type SlotPolicy struct {
	// Default applies when no other rule matches.
	Default int `json:"default_minutes,omitempty"`
	// PerDuration overrides the step for specific durations, keyed by minutes.
	PerDuration map[int]int `json:"per_duration,omitempty"`
	// MatchDuration steps by the requested duration when no override exists.
	MatchDuration bool `json:"match_duration,omitempty"`
}

// CalendarSlots is the staff calendar policy: a fixed grid.
func CalendarSlots(granularity int) SlotPolicy {
	return SlotPolicy{Default: granularity}
}

// PublicSlots is the self-booking policy: back-to-back slots of the
// requested duration.
func PublicSlots() SlotPolicy {
	return SlotPolicy{MatchDuration: true}
}

// For returns the granularity to use for the given duration.
func (p SlotPolicy) For(duration int) int {
	if g, ok := p.PerDuration[duration]; ok && g > 0 {
		return g
	}
	if p.MatchDuration || p.Default <= 0 {
		return duration
	}
	return p.Default
}

// Apply returns hours stepping at the policy's granularity for duration.
func (p SlotPolicy) Apply(hours WorkingHours, duration int) WorkingHours {
	return hours.WithGranularity(p.For(duration))
}
