package appointments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// Status aliases the scheduling lifecycle so callers need a single import.
type Status = scheduling.Status

const (
	StatusPending   = scheduling.StatusPending
	StatusConfirmed = scheduling.StatusConfirmed
	StatusCancelled = scheduling.StatusCancelled
)

// Source records which surface created an appointment.
type Source string

const (
	SourceStaff  Source = "staff"
	SourcePublic Source = "public"
)

// Appointment is a booked occupancy of a clinician's calendar. Its interval
// never changes after creation; rescheduling cancels and books anew.
type Appointment struct {
	ID           string               `json:"id"`
	ClinicID     string               `json:"clinic_id"`
	ClinicianID  string               `json:"clinician_id"`
	PatientID    string               `json:"patient_id"`
	PatientName  string               `json:"patient_name,omitempty"`
	PatientPhone string               `json:"patient_phone,omitempty"`
	PatientEmail string               `json:"patient_email,omitempty"`
	Service      string               `json:"service,omitempty"`
	Date         time.Time            `json:"-"`
	Start        scheduling.TimeOfDay `json:"start"`
	Duration     int                  `json:"duration_minutes"`
	Status       Status               `json:"status"`
	Source       Source               `json:"source"`
	Overbook     bool                 `json:"overbook"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	CancelledAt  *time.Time           `json:"cancelled_at,omitempty"`
}

// End is the first minute after the appointment.
func (a Appointment) End() scheduling.TimeOfDay {
	return a.Start.Add(a.Duration)
}

// Snapshot returns the view the resolver works on.
func (a Appointment) Snapshot() scheduling.Appointment {
	return scheduling.Appointment{
		ID:       a.ID,
		Date:     a.Date,
		Start:    a.Start,
		Duration: a.Duration,
		Status:   a.Status,
	}
}

// MarshalJSON renders the calendar date as YYYY-MM-DD and adds the end time.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	return json.Marshal(struct {
		alias
		Date string               `json:"date"`
		End  scheduling.TimeOfDay `json:"end"`
	}{
		alias: alias(a),
		Date:  a.Date.Format(scheduling.DateLayout),
		End:   a.End(),
	})
}

// Snapshots converts appointments for the resolver, skipping the given ids.
func Snapshots(appts []Appointment, exclude ...string) []scheduling.Appointment {
	out := make([]scheduling.Appointment, 0, len(appts))
	for _, a := range appts {
		skip := false
		for _, id := range exclude {
			if a.ID == id {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, a.Snapshot())
		}
	}
	return out
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusConfirmed:
		return from == StatusPending
	case StatusCancelled:
		return from == StatusPending || from == StatusConfirmed
	default:
		return false
	}
}

// allowedFrom lists the states that may move into to.
func allowedFrom(to Status) []Status {
	var from []Status
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCancelled} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// BookRequest describes a booking attempt.
type BookRequest struct {
	ClinicID     string
	ClinicianID  string
	PatientID    string
	PatientName  string
	PatientPhone string
	PatientEmail string
	Service      string
	Date         time.Time
	Start        scheduling.TimeOfDay
	Duration     int
	Source       Source
	// Status defaults to pending.
	Status Status
}

// Validate checks required fields. It does not consult the calendar.
func (r *BookRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.ClinicID) == "":
		return invalid("clinic_id is required")
	case strings.TrimSpace(r.ClinicianID) == "":
		return invalid("clinician_id is required")
	case strings.TrimSpace(r.PatientID) == "":
		return invalid("patient_id is required")
	case r.Date.IsZero():
		return invalid("date is required")
	case r.Duration <= 0:
		return invalid("duration must be positive")
	case !r.Start.Valid() || int(r.Start)+r.Duration > scheduling.MinutesPerDay:
		return invalid("start %s with duration %d does not fit in the day", r.Start, r.Duration)
	}
	if r.Source == "" {
		r.Source = SourceStaff
	}
	if r.Source != SourceStaff && r.Source != SourcePublic {
		return invalid("unknown source %q", r.Source)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return invalid("new appointments must be pending or confirmed")
	}
	return nil
}

func (r *BookRequest) request() scheduling.Request {
	return scheduling.Request{Date: r.Date, Start: r.Start, Duration: r.Duration}
}

func (r *BookRequest) appointment() *Appointment {
	return &Appointment{
		ClinicID:     r.ClinicID,
		ClinicianID:  r.ClinicianID,
		PatientID:    r.PatientID,
		PatientName:  r.PatientName,
		PatientPhone: r.PatientPhone,
		PatientEmail: r.PatientEmail,
		Service:      r.Service,
		Date:         scheduling.DateOf(r.Date),
		Start:        r.Start,
		Duration:     r.Duration,
		Status:       r.Status,
		Source:       r.Source,
	}
}
