package appointments

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// Guard inspects the committed appointments of a clinician's day while the
// repository holds that day exclusively. Returning an error aborts the write.
type Guard func(current []Appointment) error

// Repository defines the interface for appointment storage
type Repository interface {
	// Create stores appt after guard approves the current state of its day.
	// Writers for the same clinician and date are serialized.
	Create(ctx context.Context, appt *Appointment, guard Guard) error
	GetByID(ctx context.Context, clinicID, id string) (*Appointment, error)
	// ListByDate returns a clinician's appointments on one day, cancelled included.
	ListByDate(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]Appointment, error)
	// ListByRange returns appointments with from <= date <= to. An empty
	// clinicianID matches every clinician of the clinic.
	ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]Appointment, error)
	// Transition moves an appointment to a new status if the lifecycle allows it.
	Transition(ctx context.Context, clinicID, id string, to Status) (*Appointment, error)
}

// InMemoryRepository keeps appointments in process memory. It is used for
// local development and tests.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
	now          func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[string]*Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the appointment once guard accepts the day. The whole
// repository lock is held, so concurrent writers never see a stale day.
func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment, guard Guard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if guard != nil {
		current := r.filterLocked(func(a *Appointment) bool {
			return a.ClinicID == appt.ClinicID && a.ClinicianID == appt.ClinicianID && scheduling.SameDate(a.Date, appt.Date)
		})
		if err := guard(current); err != nil {
			return err
		}
	}

	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	now := r.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	stored := *appt
	r.appointments[appt.ID] = &stored
	return nil
}

// GetByID retrieves an appointment by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, clinicID, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.appointments[id]
	if !ok || appt.ClinicID != clinicID {
		return nil, ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func (r *InMemoryRepository) ListByDate(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterLocked(func(a *Appointment) bool {
		return a.ClinicID == clinicID && a.ClinicianID == clinicianID && scheduling.SameDate(a.Date, date)
	}), nil
}

func (r *InMemoryRepository) ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]Appointment, error) {
	from, to = scheduling.DateOf(from), scheduling.DateOf(to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filterLocked(func(a *Appointment) bool {
		if a.ClinicID != clinicID || (clinicianID != "" && a.ClinicianID != clinicianID) {
			return false
		}
		d := scheduling.DateOf(a.Date)
		return !d.Before(from) && !d.After(to)
	}), nil
}

func (r *InMemoryRepository) Transition(ctx context.Context, clinicID, id string, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok || appt.ClinicID != clinicID {
		return nil, ErrAppointmentNotFound
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	now := r.now()
	appt.Status = to
	appt.UpdatedAt = now
	if to == StatusCancelled {
		appt.CancelledAt = &now
	}
	out := *appt
	return &out, nil
}

func (r *InMemoryRepository) filterLocked(keep func(*Appointment) bool) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sortAppointments(out)
	return out
}

func sortAppointments(appts []Appointment) {
	slices.SortFunc(appts, func(a, b Appointment) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
