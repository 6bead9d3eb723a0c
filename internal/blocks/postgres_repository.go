package blocks

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

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores schedule blocks in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("blocks: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, block *ScheduleBlock) error {
	id := uuid.New()
	date := scheduling.DateOf(block.Date)
	err := r.db.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, clinic_id, clinician_id, block_date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		id, block.ClinicID, block.ClinicianID, date, int(block.Start), int(block.End), block.Reason,
	).Scan(&block.CreatedAt)
	if err != nil {
		return fmt.Errorf("blocks: insert failed: %w", err)
	}
	block.ID = id.String()
	block.Date = date
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, clinicID, id string) (*ScheduleBlock, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrBlockNotFound
	}
	row := r.db.QueryRow(ctx, `
		DELETE FROM schedule_blocks
		WHERE clinic_id = $1 AND id = $2
		RETURNING id, clinic_id, clinician_id, block_date, start_minute, end_minute, reason, created_at`, clinicID, parsed)
	block, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blocks: delete failed: %w", err)
	}
	return block, nil
}

func (r *PostgresRepository) ListByRange(ctx context.Context, clinicID, clinicianID string, from, to time.Time) ([]ScheduleBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, clinic_id, clinician_id, block_date, start_minute, end_minute, reason, created_at
		FROM schedule_blocks
		WHERE clinic_id = $1 AND ($2 = '' OR clinician_id = $2) AND block_date BETWEEN $3 AND $4
		ORDER BY block_date, start_minute`, clinicID, clinicianID, scheduling.DateOf(from), scheduling.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("blocks: list failed: %w", err)
	}
	defer rows.Close()

	var out []ScheduleBlock
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("blocks: scan failed: %w", err)
		}
		out = append(out, *block)
	}
	return out, rows.Err()
}

func scanBlock(row pgx.Row) (*ScheduleBlock, error) {
	var (
		b          ScheduleBlock
		id         uuid.UUID
		start, end int
	)
	if err := row.Scan(&id, &b.ClinicID, &b.ClinicianID, &b.Date, &start, &end, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.String()
	b.Date = scheduling.DateOf(b.Date)
	b.Start = scheduling.TimeOfDay(start)
	b.End = scheduling.TimeOfDay(end)
	return &b, nil
}
