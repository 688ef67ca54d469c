package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projectportal/internal/model"
)

type AllocationRepository struct {
	db *pgxpool.Pool
}

func NewAllocationRepository(db *pgxpool.Pool) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Upsert assigns the student's guide, replacing any previous one.
func (r *AllocationRepository) Upsert(ctx context.Context, a *model.Allocation) error {
	query := `
        INSERT INTO allocations (student_id, teacher_id, assigned_by, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (student_id) DO UPDATE SET
            teacher_id = EXCLUDED.teacher_id,
            assigned_by = EXCLUDED.assigned_by,
            created_at = NOW()
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query, a.StudentID, a.TeacherID, nullString(a.AssignedBy)).Scan(&a.CreatedAt)
}

// ForStudent returns nil when the student has no guide.
func (r *AllocationRepository) ForStudent(ctx context.Context, studentID string) (*model.Allocation, error) {
	rows, err := r.db.Query(ctx, selectAllocations+`WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	a, err := pgx.CollectOneRow(rows, scanAllocation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AllocationRepository) ForTeacher(ctx context.Context, teacherID string) ([]model.Allocation, error) {
	rows, err := r.db.Query(ctx, selectAllocations+`WHERE teacher_id = $1 ORDER BY created_at`, teacherID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAllocation)
}

func (r *AllocationRepository) List(ctx context.Context) ([]model.Allocation, error) {
	rows, err := r.db.Query(ctx, selectAllocations+`ORDER BY teacher_id, created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAllocation)
}

const selectAllocations = `
    SELECT student_id, teacher_id, assigned_by, created_at
    FROM allocations
`

func scanAllocation(row pgx.CollectableRow) (model.Allocation, error) {
	var (
		a          model.Allocation
		assignedBy *string
	)
	err := row.Scan(&a.StudentID, &a.TeacherID, &assignedBy, &a.CreatedAt)
	a.AssignedBy = derefString(assignedBy)
	return a, err
}
