package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduling/internal/audit"
	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clinic-scheduling.appointments")

// BlockSource supplies the schedule blocks of a clinician's day.
type BlockSource interface {
	BlocksOn(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]scheduling.Block, error)
}

// HoursSource reports a clinic's working hours on a date. ok is false when
// the clinic is closed that day.
type HoursSource interface {
	HoursOn(ctx context.Context, clinicID string, date time.Time) (hours scheduling.WorkingHours, ok bool, err error)
}

// EventRecorder writes domain events to the outbox.
type EventRecorder interface {
	Insert(ctx context.Context, clinicID string, eventType string, payload any) (uuid.UUID, error)
}

// AuditLogger records booking decisions in the audit trail.
type AuditLogger interface {
	Log(ctx context.Context, eventType audit.EventType, clinicID, clinicianID, appointmentID string, details audit.Details) error
}

// Service books appointments against the availability resolver and keeps
// their lifecycle.
type Service struct {
	repo    Repository
	blocks  BlockSource
	hours   HoursSource
	events  EventRecorder
	audit   AuditLogger
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates an appointment service.
func NewService(repo Repository, blocks BlockSource, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		blocks: blocks,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) WithHours(hours HoursSource) *Service {
	s.hours = hours
	return s
}

func (s *Service) WithEvents(rec EventRecorder) *Service {
	s.events = rec
	return s
}

func (s *Service) WithAudit(a AuditLogger) *Service {
	s.audit = a
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source used for the past-time policy.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Day is the committed state of one clinician's day.
type Day struct {
	Appointments []Appointment
	Blocks       []scheduling.Block
}

// DayOf loads appointments and blocks for a clinician's day.
func (s *Service) DayOf(ctx context.Context, clinicID, clinicianID string, date time.Time) (Day, error) {
	appts, err := s.repo.ListByDate(ctx, clinicID, clinicianID, date)
	if err != nil {
		return Day{}, fmt.Errorf("appointments: load day: %w", err)
	}
	blocks, err := s.blocksOn(ctx, clinicID, clinicianID, date)
	if err != nil {
		return Day{}, err
	}
	return Day{Appointments: appts, Blocks: blocks}, nil
}

// Resolve evaluates a single proposed slot without booking it.
func (s *Service) Resolve(ctx context.Context, clinicID, clinicianID string, req scheduling.Request, policy scheduling.Policy) (scheduling.Decision, error) {
	day, err := s.DayOf(ctx, clinicID, clinicianID, req.Date)
	if err != nil {
		return scheduling.Decision{}, err
	}
	decision := scheduling.Resolve(req, Snapshots(day.Appointments), day.Blocks, policy)
	s.metrics.ObserveDecision("resolve", string(decision.Mode))
	return decision, nil
}

// Book resolves the requested slot and stores the appointment. The slot is
// re-resolved while the repository holds the clinician's day, so two callers
// racing for the same primary slot end up with one primary and one overbook.
// A caller that loses the race gets ErrSlotTaken.
func (s *Service) Book(ctx context.Context, req *BookRequest, policy scheduling.Policy) (*Appointment, error) {
	return s.book(ctx, req, policy, "")
}

func (s *Service) book(ctx context.Context, req *BookRequest, policy scheduling.Policy, replacing string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Book", trace.WithAttributes(
		attribute.String("clinic.id", req.ClinicID),
		attribute.String("clinician.id", req.ClinicianID),
		attribute.String("booking.source", string(req.Source)),
	))
	defer span.End()

	started := s.now()
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	source := string(req.Source)
	if err := s.checkHours(ctx, req); err != nil {
		s.metrics.ObserveBooking(source, "refused")
		return nil, err
	}

	day, err := s.DayOf(ctx, req.ClinicID, req.ClinicianID, req.Date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	decision := scheduling.Resolve(req.request(), Snapshots(day.Appointments, replacing), day.Blocks, policy)
	s.metrics.ObserveDecision(source, string(decision.Mode))
	span.SetAttributes(attribute.String("booking.mode", string(decision.Mode)))
	if !decision.Bookable {
		s.metrics.ObserveBooking(source, "refused")
		return nil, &UnavailableError{Decision: decision}
	}

	appt := req.appointment()
	guard := func(current []Appointment) error {
		blocks, err := s.blocksOn(ctx, req.ClinicID, req.ClinicianID, req.Date)
		if err != nil {
			return err
		}
		final := scheduling.Resolve(req.request(), Snapshots(current, replacing), blocks, policy)
		if !final.Bookable {
			return ErrSlotTaken
		}
		appt.Overbook = final.Mode == scheduling.ModeOverbook
		return nil
	}

	if err := s.repo.Create(ctx, appt, guard); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveConflict(source)
			s.metrics.ObserveBooking(source, "conflict")
			s.logger.Warn("slot taken during booking", "clinic_id", req.ClinicID, "clinician_id", req.ClinicianID,
				"date", req.Date.Format(scheduling.DateLayout), "start", req.Start.String())
			s.recordAudit(ctx, audit.EventSlotTaken, req.ClinicID, req.ClinicianID, "", audit.Details{
				Date:     req.Date.Format(scheduling.DateLayout),
				Start:    req.Start.String(),
				Duration: req.Duration,
				Source:   source,
			})
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("appointments: create: %w", err)
	}

	outcome := string(scheduling.ModePrimary)
	auditType := audit.EventBookingCreated
	if appt.Overbook {
		outcome = string(scheduling.ModeOverbook)
		auditType = audit.EventOverbookGranted
	}
	s.metrics.ObserveBooking(source, outcome)
	s.metrics.ObserveBookingLatency(source, s.now().Sub(started).Seconds())
	s.recordEvent(ctx, events.TypeAppointmentBooked, appt)
	s.recordAudit(ctx, auditType, appt.ClinicID, appt.ClinicianID, appt.ID, detailsOf(appt))

	s.logger.Info("appointment booked", "clinic_id", appt.ClinicID, "clinician_id", appt.ClinicianID,
		"appointment_id", appt.ID, "overbook", appt.Overbook, "source", source)
	return appt, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, clinicID, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

// List returns a clinic's appointments between two dates inclusive.
func (s *Service) List(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]Appointment, error) {
	if to.Before(from) {
		return nil, invalid("from must not be after to")
	}
	return s.repo.ListByRange(ctx, clinicID, clinicianID, from, to)
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, clinicID, id string) (*Appointment, error) {
	return s.transition(ctx, clinicID, id, StatusConfirmed)
}

// Cancel frees the appointment's slot.
func (s *Service) Cancel(ctx context.Context, clinicID, id string) (*Appointment, error) {
	return s.transition(ctx, clinicID, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, clinicID, id string, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Transition", trace.WithAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.String("appointment.status", string(to)),
	))
	defer span.End()

	appt, err := s.repo.Transition(ctx, clinicID, id, to)
	if err != nil {
		return nil, err
	}

	eventType, auditType := events.TypeAppointmentConfirmed, audit.EventBookingConfirmed
	if to == StatusCancelled {
		eventType, auditType = events.TypeAppointmentCancelled, audit.EventBookingCancelled
	}
	s.recordEvent(ctx, eventType, appt)
	s.recordAudit(ctx, auditType, appt.ClinicID, appt.ClinicianID, appt.ID, detailsOf(appt))
	return appt, nil
}

// RescheduleRequest moves an appointment. Empty fields keep the current value.
type RescheduleRequest struct {
	ClinicianID string
	Date        time.Time
	Start       scheduling.TimeOfDay
	Duration    int
}

// Reschedule books the new slot and then cancels the old appointment. The
// old appointment is not counted against the new slot, and it stays in
// place when the new booking fails.
func (s *Service) Reschedule(ctx context.Context, clinicID, id string, move RescheduleRequest, policy scheduling.Policy) (*Appointment, error) {
	old, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if old.Status == StatusCancelled {
		return nil, ErrInvalidTransition
	}

	req := &BookRequest{
		ClinicID:     old.ClinicID,
		ClinicianID:  old.ClinicianID,
		PatientID:    old.PatientID,
		PatientName:  old.PatientName,
		PatientPhone: old.PatientPhone,
		PatientEmail: old.PatientEmail,
		Service:      old.Service,
		Date:         move.Date,
		Start:        move.Start,
		Duration:     old.Duration,
		Source:       old.Source,
		Status:       old.Status,
	}
	if move.ClinicianID != "" {
		req.ClinicianID = move.ClinicianID
	}
	if move.Duration > 0 {
		req.Duration = move.Duration
	}

	moved, err := s.book(ctx, req, policy, old.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, clinicID, old.ID, StatusCancelled); err != nil && !errors.Is(err, ErrInvalidTransition) {
		return moved, fmt.Errorf("appointments: cancel rescheduled %s: %w", old.ID, err)
	}
	return moved, nil
}

func (s *Service) blocksOn(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]scheduling.Block, error) {
	if s.blocks == nil {
		return nil, nil
	}
	blocks, err := s.blocks.BlocksOn(ctx, clinicID, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: load blocks: %w", err)
	}
	return blocks, nil
}

func (s *Service) checkHours(ctx context.Context, req *BookRequest) error {
	if s.hours == nil {
		return nil
	}
	hours, open, err := s.hours.HoursOn(ctx, req.ClinicID, req.Date)
	if err != nil {
		return fmt.Errorf("appointments: load hours: %w", err)
	}
	slot := scheduling.Interval{Start: req.Start, End: req.Start.Add(req.Duration)}
	if !open || !slot.Within(hours.Window()) {
		return ErrOutsideWorkingHours
	}
	return nil
}

func (s *Service) recordEvent(ctx context.Context, eventType string, appt *Appointment) {
	if s.events == nil {
		return
	}
	payload := events.AppointmentEventV1{
		EventID:       uuid.NewString(),
		ClinicID:      appt.ClinicID,
		AppointmentID: appt.ID,
		ClinicianID:   appt.ClinicianID,
		PatientID:     appt.PatientID,
		Date:          appt.Date.Format(scheduling.DateLayout),
		Start:         appt.Start.String(),
		Duration:      appt.Duration,
		Status:        string(appt.Status),
		Source:        string(appt.Source),
		Overbook:      appt.Overbook,
		OccurredAt:    s.now().UTC(),
	}
	if _, err := s.events.Insert(ctx, appt.ClinicID, eventType, payload); err != nil {
		s.logger.Error("failed to record appointment event", "clinic_id", appt.ClinicID,
			"appointment_id", appt.ID, "event_type", eventType, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, eventType audit.EventType, clinicID, clinicianID, appointmentID string, details audit.Details) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, eventType, clinicID, clinicianID, appointmentID, details); err != nil {
		s.logger.Error("failed to write audit event", "clinic_id", clinicID, "event_type", eventType, "error", err)
	}
}

func detailsOf(appt *Appointment) audit.Details {
	mode := string(scheduling.ModePrimary)
	if appt.Overbook {
		mode = string(scheduling.ModeOverbook)
	}
	return audit.Details{
		Date:     appt.Date.Format(scheduling.DateLayout),
		Start:    appt.Start.String(),
		Duration: appt.Duration,
		Mode:     mode,
		Source:   string(appt.Source),
	}
}
