// Package blocks manages schedule blocks: spans of a clinician's day in
// which nothing may be booked (lunch, training, time off).
package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

var (
	// ErrBlockNotFound is returned when a block does not exist for the clinic
	ErrBlockNotFound = errors.New("schedule block not found")

	// ErrInvalidBlock is returned when a block request fails validation
	ErrInvalidBlock = errors.New("invalid schedule block")
)

// ScheduleBlock is an unavailable span on one clinician's day.
type ScheduleBlock struct {
	ID          string               `json:"id"`
	ClinicID    string               `json:"clinic_id"`
	ClinicianID string               `json:"clinician_id"`
	Date        time.Time            `json:"-"`
	Start       scheduling.TimeOfDay `json:"start"`
	End         scheduling.TimeOfDay `json:"end"`
	Reason      string               `json:"reason,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Snapshot returns the view the resolver works on.
func (b ScheduleBlock) Snapshot() scheduling.Block {
	return scheduling.Block{Date: b.Date, Start: b.Start, End: b.End}
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (b ScheduleBlock) MarshalJSON() ([]byte, error) {
	type alias ScheduleBlock
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(b), Date: b.Date.Format(scheduling.DateLayout)})
}

// Snapshots converts blocks for the resolver.
func Snapshots(blocks []ScheduleBlock) []scheduling.Block {
	out := make([]scheduling.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Snapshot())
	}
	return out
}

// CreateBlockRequest represents the request body for creating a block
type CreateBlockRequest struct {
	ClinicID    string               `json:"-"`
	ClinicianID string               `json:"clinician_id"`
	Date        string               `json:"date"`
	Start       scheduling.TimeOfDay `json:"start"`
	End         scheduling.TimeOfDay `json:"end"`
	AllDay      bool                 `json:"all_day"`
	Reason      string               `json:"reason"`
}

// Validate checks the request and returns the block it describes.
func (r *CreateBlockRequest) Validate() (*ScheduleBlock, error) {
	if strings.TrimSpace(r.ClinicID) == "" {
		return nil, fmt.Errorf("%w: clinic_id is required", ErrInvalidBlock)
	}
	if strings.TrimSpace(r.ClinicianID) == "" {
		return nil, fmt.Errorf("%w: clinician_id is required", ErrInvalidBlock)
	}
	date, err := scheduling.ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	start, end := r.Start, r.End
	if r.AllDay {
		start, end = 0, scheduling.MinutesPerDay
	}
	if !start.Valid() || !end.Valid() || start >= end {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidBlock)
	}
	return &ScheduleBlock{
		ClinicID:    r.ClinicID,
		ClinicianID: strings.TrimSpace(r.ClinicianID),
		Date:        date,
		Start:       start,
		End:         end,
		Reason:      strings.TrimSpace(r.Reason),
	}, nil
}
