package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// DB abstracts the pgx pool for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, clinic_id, clinician_id, patient_id, patient_name, patient_phone, patient_email,
	service, appt_date, start_minute, duration_minutes, status, source, overbook, created_at, updated_at, cancelled_at`

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db  DB
	now func() time.Time
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// dayLockKey identifies the advisory lock guarding one clinician's day.
func dayLockKey(clinicID, clinicianID string, date time.Time) string {
	return clinicID + ":" + clinicianID + ":" + date.Format(scheduling.DateLayout)
}

// Create inserts the appointment inside a transaction that holds an advisory
// lock on the clinician's day, so guard sees every committed booking.
func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment, guard Guard) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	date := scheduling.DateOf(appt.Date)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dayLockKey(appt.ClinicID, appt.ClinicianID, date)); err != nil {
		return fmt.Errorf("appointments: lock day: %w", err)
	}

	if guard != nil {
		rows, err := tx.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE clinic_id = $1 AND clinician_id = $2 AND appt_date = $3
			ORDER BY start_minute, created_at`, appt.ClinicID, appt.ClinicianID, date)
		if err != nil {
			return fmt.Errorf("appointments: read day: %w", err)
		}
		current, err := scanAppointments(rows)
		if err != nil {
			return err
		}
		if err := guard(current); err != nil {
			return err
		}
	}

	id := uuid.New()
	if appt.ID != "" {
		parsed, err := uuid.Parse(appt.ID)
		if err != nil {
			return fmt.Errorf("appointments: invalid id %q: %w", appt.ID, err)
		}
		id = parsed
	}
	now := r.now()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, clinic_id, clinician_id, patient_id, patient_name, patient_phone, patient_email,
			service, appt_date, start_minute, duration_minutes, status, source, overbook, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		id, appt.ClinicID, appt.ClinicianID, appt.PatientID, appt.PatientName, appt.PatientPhone, appt.PatientEmail,
		appt.Service, date, int(appt.Start), appt.Duration, string(appt.Status), string(appt.Source), appt.Overbook, now,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}

	appt.ID = id.String()
	appt.Date = date
	appt.CreatedAt = now
	appt.UpdatedAt = now
	return nil
}

// GetByID retrieves an appointment by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, clinicID, id string) (*Appointment, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrAppointmentNotFound
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND id = $2`, clinicID, parsed)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) ListByDate(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND clinician_id = $2 AND appt_date = $3
		ORDER BY start_minute, created_at`, clinicID, clinicianID, scheduling.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("appointments: list by date: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PostgresRepository) ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND ($2 = '' OR clinician_id = $2) AND appt_date BETWEEN $3 AND $4
		ORDER BY appt_date, start_minute, created_at`, clinicID, clinicianID, scheduling.DateOf(from), scheduling.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("appointments: list by range: %w", err)
	}
	return scanAppointments(rows)
}

// Transition applies a status change with a conditional update so two
// concurrent transitions cannot both succeed.
func (r *PostgresRepository) Transition(ctx context.Context, clinicID, id string, to Status) (*Appointment, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrAppointmentNotFound
	}
	from := allowedFrom(to)
	if len(from) == 0 {
		return nil, ErrInvalidTransition
	}
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	now := r.now()
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			updated_at = $4,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE clinic_id = $1 AND id = $2 AND status = ANY($5)
		RETURNING `+appointmentColumns, clinicID, parsed, string(to), now, states)
	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: transition: %w", err)
	}

	if _, err := r.GetByID(ctx, clinicID, id); err != nil {
		return nil, err
	}
	return nil, ErrInvalidTransition
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a        Appointment
		id       uuid.UUID
		start    int
		status   string
		source   string
		canceled *time.Time
	)
	if err := row.Scan(&id, &a.ClinicID, &a.ClinicianID, &a.PatientID, &a.PatientName, &a.PatientPhone, &a.PatientEmail,
		&a.Service, &a.Date, &start, &a.Duration, &status, &source, &a.Overbook, &a.CreatedAt, &a.UpdatedAt, &canceled); err != nil {
		return nil, err
	}
	a.ID = id.String()
	a.Date = scheduling.DateOf(a.Date)
	a.Start = scheduling.TimeOfDay(start)
	a.Status = Status(status)
	a.Source = Source(source)
	a.CancelledAt = canceled
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}
