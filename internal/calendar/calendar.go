// Package calendar renders staff day, week and month views of a clinician's
// schedule from the availability resolver.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/blocks"
	"github.com/wolfman30/clinic-scheduling/internal/clinic"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// ErrInvalidQuery is returned for malformed view requests.
var ErrInvalidQuery = errors.New("invalid calendar query")

// State is how a slot renders on the staff calendar.
type State string

const (
	StateOpen     State = "open"
	StateOverbook State = "overbook"
	StateFull     State = "full"
	StateBlocked  State = "blocked"
)

// StateOf maps a resolver decision to its render state.
func StateOf(d scheduling.Decision) State {
	switch d.Mode {
	case scheduling.ModePrimary:
		return StateOpen
	case scheduling.ModeOverbook:
		return StateOverbook
	case scheduling.ModeBlocked:
		return StateBlocked
	default:
		return StateFull
	}
}

// Slot is one candidate start on the grid.
type Slot struct {
	Start        scheduling.TimeOfDay       `json:"start"`
	End          scheduling.TimeOfDay       `json:"end"`
	State        State                      `json:"state"`
	Appointments []appointments.Appointment `json:"appointments"`
}

// DayView is one clinician's day. OffGrid holds active appointments that
// start outside the slot grid.
type DayView struct {
	Date        string                     `json:"date"`
	ClinicianID string                     `json:"clinician_id"`
	Duration    int                        `json:"duration_minutes"`
	Closed      bool                       `json:"closed"`
	Hours       *scheduling.WorkingHours   `json:"hours,omitempty"`
	Slots       []Slot                     `json:"slots"`
	OffGrid     []appointments.Appointment `json:"off_grid,omitempty"`
	Blocks      []blocks.ScheduleBlock     `json:"blocks"`
}

// WeekView is the ISO week, Monday through Sunday, containing a date.
type WeekView struct {
	ClinicianID string    `json:"clinician_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Days        []DayView `json:"days"`
}

// DaySummary condenses one day for the month view.
type DaySummary struct {
	Date         string `json:"date"`
	Closed       bool   `json:"closed"`
	Appointments int    `json:"appointments"`
	OpenSlots    int    `json:"open_slots"`
	OverbookOpen int    `json:"overbook_available"`
}

// MonthView summarises every day of a month.
type MonthView struct {
	ClinicianID string       `json:"clinician_id"`
	Month       string       `json:"month"`
	Duration    int          `json:"duration_minutes"`
	Days        []DaySummary `json:"days"`
}

// AppointmentLister loads appointments for a date range.
type AppointmentLister interface {
	List(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]appointments.Appointment, error)
}

// BlockLister loads schedule blocks for a date range.
type BlockLister interface {
	List(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]blocks.ScheduleBlock, error)
}

// ConfigSource supplies clinic configuration.
type ConfigSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Config, error)
}

// Service builds calendar views.
type Service struct {
	appointments AppointmentLister
	blocks       BlockLister
	clinics      ConfigSource
	metrics      *metrics.SchedulingMetrics
}

func NewService(appts AppointmentLister, blks BlockLister, clinics ConfigSource, m *metrics.SchedulingMetrics) *Service {
	return &Service{appointments: appts, blocks: blks, clinics: clinics, metrics: m}
}

// Day renders a single day. A non-positive duration uses the grid step.
func (s *Service) Day(ctx context.Context, clinicID, clinicianID string, date time.Time, duration int) (*DayView, error) {
	days, err := s.render(ctx, clinicID, clinicianID, scheduling.DateOf(date), 1, duration)
	if err != nil {
		return nil, err
	}
	return &days[0], nil
}

// Week renders the Monday-to-Sunday week containing date.
func (s *Service) Week(ctx context.Context, clinicID, clinicianID string, date time.Time, duration int) (*WeekView, error) {
	monday := WeekStart(date)
	days, err := s.render(ctx, clinicID, clinicianID, monday, 7, duration)
	if err != nil {
		return nil, err
	}
	return &WeekView{
		ClinicianID: clinicianID,
		From:        monday.Format(scheduling.DateLayout),
		To:          monday.AddDate(0, 0, 6).Format(scheduling.DateLayout),
		Days:        days,
	}, nil
}

// Month summarises every day of the month containing date.
func (s *Service) Month(ctx context.Context, clinicID, clinicianID string, date time.Time, duration int) (*MonthView, error) {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	n := first.AddDate(0, 1, -1).Day()
	days, err := s.render(ctx, clinicID, clinicianID, first, n, duration)
	if err != nil {
		return nil, err
	}

	view := &MonthView{ClinicianID: clinicianID, Month: first.Format("2006-01"), Days: make([]DaySummary, 0, n)}
	for _, d := range days {
		view.Duration = d.Duration
		sum := DaySummary{Date: d.Date, Closed: d.Closed, Appointments: len(d.OffGrid)}
		for _, slot := range d.Slots {
			sum.Appointments += len(slot.Appointments)
			switch slot.State {
			case StateOpen:
				sum.OpenSlots++
			case StateOverbook:
				sum.OverbookOpen++
			}
		}
		view.Days = append(view.Days, sum)
	}
	return view, nil
}

// WeekStart returns the Monday of date's ISO week.
func WeekStart(date time.Time) time.Time {
	d := scheduling.DateOf(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func (s *Service) render(ctx context.Context, clinicID, clinicianID string, from time.Time, days, duration int) ([]DayView, error) {
	if clinicianID == "" {
		return nil, fmt.Errorf("%w: clinician_id is required", ErrInvalidQuery)
	}
	cfg, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("calendar: load config: %w", err)
	}
	if duration <= 0 {
		duration = cfg.CalendarGranularity
	}
	if duration > scheduling.MinutesPerDay {
		return nil, fmt.Errorf("%w: duration too long", ErrInvalidQuery)
	}

	to := from.AddDate(0, 0, days-1)
	appts, err := s.appointments.List(ctx, clinicID, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("calendar: load appointments: %w", err)
	}
	blks, err := s.blocks.List(ctx, clinicID, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("calendar: load blocks: %w", err)
	}

	apptsByDay := make(map[string][]appointments.Appointment)
	for _, a := range appts {
		key := a.Date.Format(scheduling.DateLayout)
		apptsByDay[key] = append(apptsByDay[key], a)
	}
	blocksByDay := make(map[string][]blocks.ScheduleBlock)
	for _, b := range blks {
		key := b.Date.Format(scheduling.DateLayout)
		blocksByDay[key] = append(blocksByDay[key], b)
	}

	policy := cfg.CalendarSlots()
	out := make([]DayView, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i)
		key := date.Format(scheduling.DateLayout)
		view := renderDay(cfg, policy, clinicianID, date, duration, apptsByDay[key], blocksByDay[key])
		s.metrics.ObserveSlots("calendar", len(view.Slots))
		out = append(out, view)
	}
	return out, nil
}

func renderDay(cfg *clinic.Config, policy scheduling.SlotPolicy, clinicianID string, date time.Time, duration int, appts []appointments.Appointment, blks []blocks.ScheduleBlock) DayView {
	view := DayView{
		Date:        date.Format(scheduling.DateLayout),
		ClinicianID: clinicianID,
		Duration:    duration,
		Slots:       []Slot{},
		Blocks:      blks,
	}
	if view.Blocks == nil {
		view.Blocks = []blocks.ScheduleBlock{}
	}

	hours, open := cfg.HoursFor(date)
	if !open {
		view.Closed = true
		view.OffGrid = activeOnly(appts)
		return view
	}
	hours = policy.Apply(hours, duration)
	view.Hours = &hours

	step := hours.Granularity
	if step <= 0 {
		step = duration
	}
	placed := make(map[string]bool)
	for start, decision := range scheduling.Evaluate(date, duration, hours, appointments.Snapshots(appts), blocks.Snapshots(blks), scheduling.Policy{}) {
		slot := Slot{Start: start, End: start.Add(duration), State: StateOf(decision), Appointments: []appointments.Appointment{}}
		for _, a := range appts {
			if a.Status == appointments.StatusCancelled || placed[a.ID] {
				continue
			}
			if a.Start >= start && a.Start < start.Add(step) {
				slot.Appointments = append(slot.Appointments, a)
				placed[a.ID] = true
			}
		}
		view.Slots = append(view.Slots, slot)
	}
	for _, a := range appts {
		if a.Status != appointments.StatusCancelled && !placed[a.ID] {
			view.OffGrid = append(view.OffGrid, a)
		}
	}
	return view
}

func activeOnly(appts []appointments.Appointment) []appointments.Appointment {
	var out []appointments.Appointment
	for _, a := range appts {
		if a.Status != appointments.StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}
