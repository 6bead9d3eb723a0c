// Package clinic provides clinic-specific scheduling configuration.
package clinic

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid clinic config")

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// Working converts the day's hours for the slot generator.
func (d *DayHours) Working(granularity int) (scheduling.WorkingHours, error) {
	open, err := scheduling.ParseTimeOfDay(d.Open)
	if err != nil {
		return scheduling.WorkingHours{}, fmt.Errorf("open: %w", err)
	}
	closing, err := scheduling.ParseTimeOfDay(d.Close)
	if err != nil {
		return scheduling.WorkingHours{}, fmt.Errorf("close: %w", err)
	}
	hours := scheduling.WorkingHours{Open: open, Close: closing, Granularity: granularity}
	return hours, hours.Validate()
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// Clinician is a bookable provider and the service lengths patients may
// pick for them on the public page.
type Clinician struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Durations []int  `json:"offered_durations"`
}

// Offers reports whether duration is offered for self-booking.
func (c Clinician) Offers(duration int) bool {
	return slices.Contains(c.Durations, duration)
}

// Config holds clinic-specific scheduling configuration.
type Config struct {
	ClinicID      string        `json:"clinic_id"`
	Name          string        `json:"name"`
	Timezone      string        `json:"timezone"` // e.g., "America/New_York"
	BusinessHours BusinessHours `json:"business_hours"`
	// CalendarGranularity is the staff calendar step in minutes.
	CalendarGranularity int `json:"calendar_granularity_minutes"`
	// PublicGranularity overrides the public page step per duration class.
	// Durations without an entry step by their own length.
	PublicGranularity    map[int]int `json:"public_granularity_minutes,omitempty"`
	Clinicians           []Clinician `json:"clinicians"`
	PublicBookingEnabled bool        `json:"public_booking_enabled"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(clinicID string) *Config {
	return &Config{
		ClinicID: clinicID,
		Name:     "Clinic",
		Timezone: "America/New_York",
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "09:00", Close: "18:00"},
			Tuesday:   &DayHours{Open: "09:00", Close: "18:00"},
			Wednesday: &DayHours{Open: "09:00", Close: "18:00"},
			Thursday:  &DayHours{Open: "09:00", Close: "18:00"},
			Friday:    &DayHours{Open: "09:00", Close: "18:00"},
			Saturday:  nil, // Closed
			Sunday:    nil, // Closed
		},
		CalendarGranularity:  60,
		Clinicians:           []Clinician{},
		PublicBookingEnabled: true,
	}
}

// Location returns the clinic's time zone, UTC when unset or unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// HoursFor returns the staff calendar hours on date. ok is false on closed days.
func (c *Config) HoursFor(date time.Time) (hours scheduling.WorkingHours, ok bool) {
	day := c.BusinessHours.GetHoursForDay(date.Weekday())
	if day == nil {
		return scheduling.WorkingHours{}, false
	}
	hours, err := day.Working(c.CalendarGranularity)
	if err != nil {
		return scheduling.WorkingHours{}, false
	}
	return hours, true
}

// CalendarSlots is the slot policy for the staff calendar.
func (c *Config) CalendarSlots() scheduling.SlotPolicy {
	return scheduling.CalendarSlots(c.CalendarGranularity)
}

// PublicSlots is the slot policy for the public booking page.
func (c *Config) PublicSlots() scheduling.SlotPolicy {
	policy := scheduling.PublicSlots()
	if len(c.PublicGranularity) > 0 {
		policy.PerDuration = c.PublicGranularity
	}
	return policy
}

// Clinician looks up a clinician by ID.
func (c *Config) Clinician(id string) (Clinician, bool) {
	for _, cl := range c.Clinicians {
		if cl.ID == id {
			return cl, true
		}
	}
	return Clinician{}, false
}

// Validate checks the configuration before it is saved.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClinicID) == "" {
		return fmt.Errorf("%w: clinic_id is required", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	if c.CalendarGranularity <= 0 || c.CalendarGranularity > scheduling.MinutesPerDay {
		return fmt.Errorf("%w: calendar granularity must be between 1 and %d", ErrInvalidConfig, scheduling.MinutesPerDay)
	}
	for duration, step := range c.PublicGranularity {
		if duration <= 0 || step <= 0 {
			return fmt.Errorf("%w: public granularity entries must be positive", ErrInvalidConfig)
		}
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day := c.BusinessHours.GetHoursForDay(wd)
		if day == nil {
			continue
		}
		if _, err := day.Working(c.CalendarGranularity); err != nil {
			return fmt.Errorf("%w: %s hours: %v", ErrInvalidConfig, strings.ToLower(wd.String()), err)
		}
	}
	seen := make(map[string]struct{}, len(c.Clinicians))
	for _, cl := range c.Clinicians {
		if strings.TrimSpace(cl.ID) == "" {
			return fmt.Errorf("%w: clinician id is required", ErrInvalidConfig)
		}
		if _, dup := seen[cl.ID]; dup {
			return fmt.Errorf("%w: duplicate clinician %q", ErrInvalidConfig, cl.ID)
		}
		seen[cl.ID] = struct{}{}
		for _, d := range cl.Durations {
			if d <= 0 || d > scheduling.MinutesPerDay {
				return fmt.Errorf("%w: clinician %q offers invalid duration %d", ErrInvalidConfig, cl.ID, d)
			}
		}
	}
	return nil
}
