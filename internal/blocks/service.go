package blocks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduling/internal/audit"
	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// EventRecorder writes domain events to the outbox.
type EventRecorder interface {
	Insert(ctx context.Context, clinicID string, eventType string, payload any) (uuid.UUID, error)
}

// AuditLogger records block changes in the audit trail.
type AuditLogger interface {
	Log(ctx context.Context, eventType audit.EventType, clinicID, clinicianID, appointmentID string, details audit.Details) error
}

// Service validates block changes and publishes them.
type Service struct {
	repo   Repository
	events EventRecorder
	audit  AuditLogger
	logger *logging.Logger
}

// NewService creates a block service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) WithEvents(rec EventRecorder) *Service {
	s.events = rec
	return s
}

func (s *Service) WithAudit(a AuditLogger) *Service {
	s.audit = a
	return s
}

// Create validates and stores a block. Existing appointments inside the
// span are left alone; the block only stops new bookings.
func (s *Service) Create(ctx context.Context, req *CreateBlockRequest) (*ScheduleBlock, error) {
	block, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, block); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeScheduleBlockCreated, audit.EventBlockCreated, block)
	return block, nil
}

// Delete removes a block.
func (s *Service) Delete(ctx context.Context, clinicID, id string) (*ScheduleBlock, error) {
	block, err := s.repo.Delete(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeScheduleBlockDeleted, audit.EventBlockDeleted, block)
	return block, nil
}

// List returns blocks in a date range.
func (s *Service) List(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]ScheduleBlock, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidBlock)
	}
	return s.repo.ListByRange(ctx, clinicID, clinicianID, from, to)
}

// BlocksOn returns a clinician's blocks for one day in resolver form.
func (s *Service) BlocksOn(ctx context.Context, clinicID, clinicianID string, date time.Time) ([]scheduling.Block, error) {
	blocks, err := s.repo.ListByRange(ctx, clinicID, clinicianID, date, date)
	if err != nil {
		return nil, err
	}
	return Snapshots(blocks), nil
}

func (s *Service) publish(ctx context.Context, eventType string, auditType audit.EventType, block *ScheduleBlock) {
	date := block.Date.Format(scheduling.DateLayout)
	if s.events != nil {
		payload := events.ScheduleBlockEventV1{
			EventID:     uuid.NewString(),
			ClinicID:    block.ClinicID,
			BlockID:     block.ID,
			ClinicianID: block.ClinicianID,
			Date:        date,
			Start:       block.Start.String(),
			End:         block.End.String(),
			Reason:      block.Reason,
			OccurredAt:  time.Now().UTC(),
		}
		if _, err := s.events.Insert(ctx, block.ClinicID, eventType, payload); err != nil {
			s.logger.Error("failed to record block event", "clinic_id", block.ClinicID, "block_id", block.ID, "error", err)
		}
	}
	if s.audit != nil {
		details := audit.Details{Date: date, Start: block.Start.String(), Duration: int(block.End - block.Start), Reason: block.Reason}
		if err := s.audit.Log(ctx, auditType, block.ClinicID, block.ClinicianID, "", details); err != nil {
			s.logger.Error("failed to audit block change", "clinic_id", block.ClinicID, "block_id", block.ID, "error", err)
		}
	}
}
