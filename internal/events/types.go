package events

import "time"

// Event types written to the outbox. Consumers (notification senders,
// reporting) subscribe to these.
const (
	TypeAppointmentBooked    = "appointment.booked.v1"
	TypeAppointmentConfirmed = "appointment.confirmed.v1"
	TypeAppointmentCancelled = "appointment.cancelled.v1"
	TypeScheduleBlockCreated = "schedule_block.created.v1"
	TypeScheduleBlockDeleted = "schedule_block.deleted.v1"
)

type AppointmentEventV1 struct {
	EventID       string    `json:"event_id"`
	ClinicID      string    `json:"clinic_id"`
	AppointmentID string    `json:"appointment_id"`
	ClinicianID   string    `json:"clinician_id"`
	PatientID     string    `json:"patient_id"`
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	Duration      int       `json:"duration_minutes"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	Overbook      bool      `json:"overbook"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type ScheduleBlockEventV1 struct {
	EventID     string    `json:"event_id"`
	ClinicID    string    `json:"clinic_id"`
	BlockID     string    `json:"block_id"`
	ClinicianID string    `json:"clinician_id"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
