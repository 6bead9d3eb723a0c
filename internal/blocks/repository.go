package blocks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

// Repository defines the interface for schedule block storage
type Repository interface {
	Create(ctx context.Context, block *ScheduleBlock) error
	Delete(ctx context.Context, clinicID, id string) (*ScheduleBlock, error)
	// ListByRange returns blocks with from <= date <= to. An empty
	// clinicianID matches every clinician of the clinic.
	ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]ScheduleBlock, error)
}

// InMemoryRepository keeps blocks in process memory
type InMemoryRepository struct {
	mu     sync.RWMutex
	blocks map[string]*ScheduleBlock
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{blocks: make(map[string]*ScheduleBlock)}
}

func (r *InMemoryRepository) Create(ctx context.Context, block *ScheduleBlock) error {
	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	block.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	stored := *block
	r.blocks[block.ID] = &stored
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, clinicID, id string) (*ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	block, ok := r.blocks[id]
	if !ok || block.ClinicID != clinicID {
		return nil, ErrBlockNotFound
	}
	delete(r.blocks, id)
	return block, nil
}

func (r *InMemoryRepository) ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]ScheduleBlock, error) {
	from, to = scheduling.DateOf(from), scheduling.DateOf(to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ScheduleBlock
	for _, b := range r.blocks {
		if b.ClinicID != clinicID || (clinicianID != "" && b.ClinicianID != clinicianID) {
			continue
		}
		d := scheduling.DateOf(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b ScheduleBlock) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return int(a.Start - b.Start)
	})
	return out, nil
}
