// Package publicbooking serves the patient-facing self-booking page: the
// clinicians a clinic offers, their open slots and booking submission.
package publicbooking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	"github.com/wolfman30/clinic-scheduling/internal/clinic"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

var (
	// ErrBookingDisabled is returned when the clinic has self-booking turned off
	ErrBookingDisabled = errors.New("online booking is not available for this clinic")

	// ErrClinicianNotFound is returned for clinicians not listed for self-booking
	ErrClinicianNotFound = errors.New("clinician not found")

	// ErrDurationNotOffered is returned when the clinician does not offer the duration
	ErrDurationNotOffered = errors.New("duration not offered")

	// ErrInvalidPatient is returned when contact details are missing or malformed
	ErrInvalidPatient = errors.New("invalid patient details")

	// ErrRequestInFlight is returned when the same idempotency key is being processed
	ErrRequestInFlight = errors.New("a booking with this idempotency key is already in progress")
)

// guestNamespace scopes name-based patient references.
var guestNamespace = uuid.MustParse("6f1c4b1e-2a3d-4c55-9b8e-0d7a1c2e3f40")

// ConfigSource supplies clinic configuration.
type ConfigSource interface {
	Get(ctx context.Context, clinicID string) (*clinic.Config, error)
}

// Booker is the subset of the appointment service used here.
type Booker interface {
	Now() time.Time
	DayOf(ctx context.Context, clinicID, clinicianID string, date time.Time) (appointments.Day, error)
	Book(ctx context.Context, req *appointments.BookRequest, policy scheduling.Policy) (*appointments.Appointment, error)
	Get(ctx context.Context, clinicID, id string) (*appointments.Appointment, error)
}

// Offer is an open slot shown to patients.
type Offer struct {
	Start scheduling.TimeOfDay `json:"start"`
	End   scheduling.TimeOfDay `json:"end"`
}

// Patient is the contact captured on the booking form.
type Patient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// BookingRequest is a self-booking submission.
type BookingRequest struct {
	Date     string               `json:"date"`
	Start    scheduling.TimeOfDay `json:"start"`
	Duration int                  `json:"duration_minutes"`
	Service  string               `json:"service"`
	Patient  Patient              `json:"patient"`
}

// Service implements the public booking flow.
type Service struct {
	clinics ConfigSource
	booker  Booker
	idem    *IdempotencyStore
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

func NewService(clinics ConfigSource, booker Booker, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{clinics: clinics, booker: booker, logger: logger}
}

func (s *Service) WithIdempotency(store *IdempotencyStore) *Service {
	s.idem = store
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// Clinicians lists the clinicians open for self-booking.
func (s *Service) Clinicians(ctx context.Context, clinicID string) ([]clinic.Clinician, error) {
	cfg, err := s.config(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	out := make([]clinic.Clinician, 0, len(cfg.Clinicians))
	for _, c := range cfg.Clinicians {
		if len(c.Durations) > 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// Availability returns the bookable starts for a clinician's day. Slots at
// or before the current time in the clinic's zone are never offered.
func (s *Service) Availability(ctx context.Context, clinicID, clinicianID string, date time.Time, duration int) ([]Offer, error) {
	cfg, hours, open, err := s.prepare(ctx, clinicID, clinicianID, date, duration)
	if err != nil {
		return nil, err
	}
	offers := []Offer{}
	if !open {
		return offers, nil
	}

	day, err := s.booker.DayOf(ctx, clinicID, clinicianID, date)
	if err != nil {
		return nil, err
	}
	policy := scheduling.RejectPastAt(s.booker.Now(), cfg.Location())
	evaluated := 0
	for start, decision := range scheduling.Evaluate(date, duration, hours, appointments.Snapshots(day.Appointments), day.Blocks, policy) {
		evaluated++
		if decision.Bookable {
			offers = append(offers, Offer{Start: start, End: start.Add(duration)})
		}
	}
	s.metrics.ObserveSlots("public", evaluated)
	return offers, nil
}

// Book submits a self-booking. With a non-empty idempotencyKey a repeated
// submission returns the appointment created the first time; replayed
// reports whether that happened.
func (s *Service) Book(ctx context.Context, clinicID, clinicianID string, req BookingRequest, idempotencyKey string) (appt *appointments.Appointment, replayed bool, err error) {
	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", appointments.ErrInvalidRequest, err)
	}
	patientID, err := req.Patient.normalize()
	if err != nil {
		return nil, false, err
	}
	cfg, hours, open, err := s.prepare(ctx, clinicID, clinicianID, date, req.Duration)
	if err != nil {
		return nil, false, err
	}
	if !open || !onGrid(req.Start, req.Duration, hours) {
		return nil, false, &appointments.UnavailableError{Decision: scheduling.Decision{Bookable: false, Mode: scheduling.ModeUnavailable}}
	}

	if s.idem != nil && idempotencyKey != "" {
		claimed, existingID, err := s.idem.Claim(ctx, clinicID, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if !claimed {
			if existingID == "" {
				return nil, false, ErrRequestInFlight
			}
			existing, err := s.booker.Get(ctx, clinicID, existingID)
			return existing, err == nil, err
		}
	}

	appt, err = s.booker.Book(ctx, &appointments.BookRequest{
		ClinicID:     clinicID,
		ClinicianID:  clinicianID,
		PatientID:    patientID,
		PatientName:  req.Patient.Name,
		PatientPhone: req.Patient.Phone,
		PatientEmail: req.Patient.Email,
		Service:      strings.TrimSpace(req.Service),
		Date:         date,
		Start:        req.Start,
		Duration:     req.Duration,
		Source:       appointments.SourcePublic,
		Status:       appointments.StatusPending,
	}, scheduling.RejectPastAt(s.booker.Now(), cfg.Location()))

	if s.idem != nil && idempotencyKey != "" {
		if err != nil {
			if relErr := s.idem.Release(ctx, clinicID, idempotencyKey); relErr != nil {
				s.logger.Warn("failed to release idempotency key", "clinic_id", clinicID, "error", relErr)
			}
		} else if compErr := s.idem.Complete(ctx, clinicID, idempotencyKey, appt.ID); compErr != nil {
			s.logger.Warn("failed to record idempotency key", "clinic_id", clinicID, "appointment_id", appt.ID, "error", compErr)
		}
	}
	if err != nil {
		return nil, false, err
	}
	return appt, false, nil
}

// prepare loads config and checks that the clinician offers duration. hours
// carries the public slot step.
func (s *Service) prepare(ctx context.Context, clinicID, clinicianID string, date time.Time, duration int) (*clinic.Config, scheduling.WorkingHours, bool, error) {
	cfg, err := s.config(ctx, clinicID)
	if err != nil {
		return nil, scheduling.WorkingHours{}, false, err
	}
	clinician, ok := cfg.Clinician(clinicianID)
	if !ok || len(clinician.Durations) == 0 {
		return nil, scheduling.WorkingHours{}, false, ErrClinicianNotFound
	}
	if !clinician.Offers(duration) {
		return nil, scheduling.WorkingHours{}, false, ErrDurationNotOffered
	}
	hours, open := cfg.HoursFor(date)
	if open {
		hours = cfg.PublicSlots().Apply(hours, duration)
	}
	return cfg, hours, open, nil
}

func (s *Service) config(ctx context.Context, clinicID string) (*clinic.Config, error) {
	cfg, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("publicbooking: load config: %w", err)
	}
	if !cfg.PublicBookingEnabled {
		return nil, ErrBookingDisabled
	}
	return cfg, nil
}

func onGrid(start scheduling.TimeOfDay, duration int, hours scheduling.WorkingHours) bool {
	for t := range scheduling.GenerateSlots(duration, hours) {
		if t == start {
			return true
		}
		if t > start {
			return false
		}
	}
	return false
}

// normalize trims the contact details and derives the guest patient
// reference: a name-based UUID of the email, or of the phone digits when
// no email is given.
func (p *Patient) normalize() (string, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)

	if p.Name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	if p.Email == "" && p.Phone == "" {
		return "", fmt.Errorf("%w: email or phone is required", ErrInvalidPatient)
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return "", fmt.Errorf("%w: email is not valid", ErrInvalidPatient)
		}
		return GuestPatientRef("email:" + p.Email), nil
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, p.Phone)
	if len(digits) < 7 {
		return "", fmt.Errorf("%w: phone is not valid", ErrInvalidPatient)
	}
	return GuestPatientRef("phone:" + digits), nil
}

// GuestPatientRef derives a stable patient ID for a contact key.
func GuestPatientRef(contact string) string {
	return uuid.NewSHA1(guestNamespace, []byte(contact)).String()
}
