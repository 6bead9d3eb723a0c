package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

var appointmentCols = []string{
	"id", "clinic_id", "clinician_id", "patient_id", "patient_name", "patient_phone", "patient_email",
	"service", "appt_date", "start_minute", "duration_minutes", "status", "source", "overbook",
	"created_at", "updated_at", "cancelled_at",
}

func addAppointmentRow(rows *pgxmock.Rows, id uuid.UUID, start int, status string) *pgxmock.Rows {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "clinic-1", "dr-a", "patient-1", "Jane", "+15551234567", "jane@example.com",
		"facial", testDay, start, 60, status, "staff", false, created, created, (*time.Time)(nil))
}

func newTestAppointment() *Appointment {
	return &Appointment{
		ClinicID:    "clinic-1",
		ClinicianID: "dr-a",
		PatientID:   "patient-2",
		Date:        testDay.Add(15 * time.Hour),
		Start:       scheduling.Clock(10, 0),
		Duration:    60,
		Status:      StatusPending,
		Source:      SourceStaff,
	}
}

func TestPostgresRepository_CreateHoldsDayLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("clinic-1:dr-a:2025-03-10").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", "dr-a", testDay).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentCols), uuid.New(), 600, "confirmed"))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "clinic-1", "dr-a", "patient-2", "", "", "", "", testDay, 600, 60, "pending", "staff", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	appt := newTestAppointment()
	var seen int
	err = repo.Create(context.Background(), appt, func(current []Appointment) error {
		seen = len(current)
		appt.Overbook = true
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, seen)
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, testDay, appt.Date)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateGuardRejects(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(appointmentCols)
	addAppointmentRow(rows, uuid.New(), 600, "pending")
	addAppointmentRow(rows, uuid.New(), 600, "confirmed")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("clinic-1:dr-a:2025-03-10").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", "dr-a", testDay).
		WillReturnRows(rows)
	mock.ExpectRollback()

	repo := NewPostgresRepository(mock)
	err = repo.Create(context.Background(), newTestAppointment(), func(current []Appointment) error {
		if len(current) >= scheduling.MaxPerStart {
			return ErrSlotTaken
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", id).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentCols), id, 540, "pending"))
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", id).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	repo := NewPostgresRepository(mock)
	ctx := context.Background()

	appt, err := repo.GetByID(ctx, "clinic-1", id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), appt.ID)
	assert.Equal(t, scheduling.Clock(9, 0), appt.Start)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Nil(t, appt.CancelledAt)

	_, err = repo.GetByID(ctx, "clinic-1", id.String())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = repo.GetByID(ctx, "clinic-1", "nope")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(appointmentCols)
	addAppointmentRow(rows, uuid.New(), 540, "pending")
	addAppointmentRow(rows, uuid.New(), 600, "cancelled")
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", "", testDay, testDay.AddDate(0, 0, 6)).
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	list, err := repo.ListByRange(context.Background(), "clinic-1", "", testDay, testDay.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusCancelled, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Transition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("clinic-1", id, "confirmed", pgxmock.AnyArg(), []string{"pending"}).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentCols), id, 540, "confirmed"))

	// Second confirm: the conditional update matches nothing and the row exists.
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("clinic-1", id, "confirmed", pgxmock.AnyArg(), []string{"pending"}).
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", id).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentCols), id, 540, "confirmed"))

	repo := NewPostgresRepository(mock)
	ctx := context.Background()

	appt, err := repo.Transition(ctx, "clinic-1", id.String(), StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)

	_, err = repo.Transition(ctx, "clinic-1", id.String(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.Transition(ctx, "clinic-1", id.String(), StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}
