// Package audit keeps an immutable trail of scheduling decisions that staff
// may need to review later: overbooks granted, write conflicts, cancellations
// and calendar blocks.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wolfman30/clinic-scheduling/internal/tenancy"
)

// EventType identifies what happened.
type EventType string

const (
	// EventBookingCreated is logged for every successful booking.
	EventBookingCreated EventType = "booking.created"
	// EventOverbookGranted is logged when a booking took the supplementary slot.
	EventOverbookGranted EventType = "booking.overbook_granted"
	// EventSlotTaken is logged when a booking lost the race for its slot.
	EventSlotTaken EventType = "booking.slot_taken"
	// EventBookingConfirmed is logged when staff confirm an appointment.
	EventBookingConfirmed EventType = "booking.confirmed"
	// EventBookingCancelled is logged when an appointment is cancelled.
	EventBookingCancelled EventType = "booking.cancelled"
	// EventBlockCreated is logged when a schedule block is added.
	EventBlockCreated EventType = "block.created"
	// EventBlockDeleted is logged when a schedule block is removed.
	EventBlockDeleted EventType = "block.deleted"
)

// Event is one audit record.
type Event struct {
	ID            string          `json:"id"`
	EventType     EventType       `json:"event_type"`
	ClinicID      string          `json:"clinic_id"`
	ClinicianID   string          `json:"clinician_id,omitempty"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Details is the structured payload stored with an event.
type Details struct {
	Date     string `json:"date,omitempty"`
	Start    string `json:"start,omitempty"`
	Duration int    `json:"duration_minutes,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Source   string `json:"source,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Query filters List.
type Query struct {
	ClinicID string
	Types    []EventType
	Since    time.Time
	Limit    int
}

// Service writes and reads audit events.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Actor == "" {
		event.Actor = tenancy.ActorFromContext(ctx)
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO booking_audit_events (
			id, event_type, clinic_id, clinician_id, appointment_id, actor, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.ClinicID,
		nullString(event.ClinicianID),
		nullString(event.AppointmentID),
		nullString(event.Actor),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

// Log is LogEvent with structured details.
func (s *Service) Log(ctx context.Context, eventType EventType, clinicID, clinicianID, appointmentID string, details Details) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}
	return s.LogEvent(ctx, Event{
		EventType:     eventType,
		ClinicID:      clinicID,
		ClinicianID:   clinicianID,
		AppointmentID: appointmentID,
		Details:       data,
	})
}

// List returns the newest events of a clinic, optionally filtered by type.
func (s *Service) List(ctx context.Context, q Query) ([]Event, error) {
	if strings.TrimSpace(q.ClinicID) == "" {
		return nil, fmt.Errorf("audit: clinic id required")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	types := make([]string, 0, len(q.Types))
	for _, t := range q.Types {
		types = append(types, string(t))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, clinic_id, clinician_id, appointment_id, actor, details, created_at
		FROM booking_audit_events
		WHERE clinic_id = $1
		  AND (cardinality($2::text[]) = 0 OR event_type = ANY($2::text[]))
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`,
		q.ClinicID, pq.Array(types), q.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                                 Event
			eventType                         string
			clinicianID, appointmentID, actor sql.NullString
			details                           []byte
		)
		if err := rows.Scan(&e.ID, &eventType, &e.ClinicID, &clinicianID, &appointmentID, &actor, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.EventType = EventType(eventType)
		e.ClinicianID = clinicianID.String
		e.AppointmentID = appointmentID.String
		e.Actor = actor.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
