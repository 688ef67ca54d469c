package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/progress"
	"projectportal/pkg/logger"
	"projectportal/pkg/otel"
	"projectportal/pkg/outbox"
)

// ProgressRepository stores progress documents across the progress and
// milestones tables. Update is an atomic read-modify-write: a transaction
// takes an advisory lock on the student, locks the row and writes the
// document and its events to the outbox together.
type ProgressRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewProgressRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *ProgressRepository {
	return &ProgressRepository{db: db, outbox: outboxRepo, logger: logger}
}

const selectProgress = `
	SELECT student_id, project_id, template_id, overall_progress, custom_template, last_updated
	FROM progress
`

const selectMilestones = `
	SELECT student_id, title, description, estimated_days, due_date, status, progress, locked,
	       file_url, approved_by_teacher, completed_at, notes, sort_order
	FROM milestones
`

func (r *ProgressRepository) Get(ctx context.Context, studentID string) (*model.Progress, error) {
	var out *model.Progress
	err := otel.Traced(ctx, "select", "progress", func(ctx context.Context) error {
		p, exists, err := loadProgress(ctx, r.db, studentID, false)
		if err != nil {
			return err
		}
		if !exists {
			return progress.ErrProgressNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *ProgressRepository) Update(ctx context.Context, studentID string, fn progress.MutateFunc) (*model.Progress, error) {
	var out *model.Progress
	err := otel.Traced(ctx, "update", "progress", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
			return fmt.Errorf("failed to lock progress: %w", err)
		}

		current, exists, err := loadProgress(ctx, tx, studentID, true)
		if err != nil {
			return err
		}
		work := &model.Progress{StudentID: studentID, Milestones: []model.Milestone{}}
		if exists {
			work = current.Clone()
		}

		events, err := fn(work, exists)
		if errors.Is(err, progress.ErrUnchanged) {
			if !exists {
				return progress.ErrProgressNotFound
			}
			out = current
			return nil
		}
		if err != nil {
			return err
		}

		if err := saveProgress(ctx, tx, work); err != nil {
			return err
		}
		for _, e := range events {
			if err := outbox.InsertEventInTx(ctx, tx, r.outbox, e.ID, e.AggregateType, e.AggregateID, e.RoutingKey, e.Payload); err != nil {
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit progress: %w", err)
		}

		logger.WithTrace(ctx, r.logger).Debug("progress saved",
			zap.String("student_id", studentID),
			zap.Int("events", len(events)),
		)
		out = work
		return nil
	})
	return out, err
}

func (r *ProgressRepository) ListByStudents(ctx context.Context, studentIDs []string) ([]*model.Progress, error) {
	if len(studentIDs) == 0 {
		return []*model.Progress{}, nil
	}
	var out []*model.Progress
	err := otel.Traced(ctx, "select", "progress", func(ctx context.Context) error {
		var err error
		out, err = r.listWhere(ctx, `WHERE student_id = ANY($1)`, studentIDs)
		return err
	})
	return out, err
}

// ListOpen returns every document that still has an unfinished milestone.
func (r *ProgressRepository) ListOpen(ctx context.Context) ([]*model.Progress, error) {
	var out []*model.Progress
	err := otel.Traced(ctx, "select", "progress", func(ctx context.Context) error {
		var err error
		out, err = r.listWhere(ctx,
			`WHERE student_id IN (SELECT DISTINCT student_id FROM milestones WHERE status <> 'completed')`)
		return err
	})
	return out, err
}

func (r *ProgressRepository) listWhere(ctx context.Context, where string, args ...any) ([]*model.Progress, error) {
	rows, err := r.db.Query(ctx, selectProgress+where+` ORDER BY student_id`, args...)
	if err != nil {
		return nil, err
	}
	docs, err := pgx.CollectRows(rows, scanProgress)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []*model.Progress{}, nil
	}

	ids := make([]string, len(docs))
	byID := make(map[string]*model.Progress, len(docs))
	for i, p := range docs {
		ids[i] = p.StudentID
		byID[p.StudentID] = p
	}
	msRows, err := r.db.Query(ctx, selectMilestones+`WHERE student_id = ANY($1) ORDER BY student_id, idx`, ids)
	if err != nil {
		return nil, err
	}
	defer msRows.Close()
	for msRows.Next() {
		studentID, m, err := scanMilestone(msRows)
		if err != nil {
			return nil, err
		}
		if p, ok := byID[studentID]; ok {
			p.Milestones = append(p.Milestones, m)
		}
	}
	return docs, msRows.Err()
}

func loadProgress(ctx context.Context, q querier, studentID string, forUpdate bool) (*model.Progress, bool, error) {
	query := selectProgress + `WHERE student_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, studentID)
	if err != nil {
		return nil, false, err
	}
	p, err := pgx.CollectOneRow(rows, scanProgress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	msRows, err := q.Query(ctx, selectMilestones+`WHERE student_id = $1 ORDER BY idx`, studentID)
	if err != nil {
		return nil, false, err
	}
	defer msRows.Close()
	for msRows.Next() {
		_, m, err := scanMilestone(msRows)
		if err != nil {
			return nil, false, err
		}
		p.Milestones = append(p.Milestones, m)
	}
	return p, true, msRows.Err()
}

func scanProgress(row pgx.CollectableRow) (*model.Progress, error) {
	var (
		p          model.Progress
		projectID  *string
		templateID *string
	)
	if err := row.Scan(&p.StudentID, &projectID, &templateID, &p.OverallProgress, &p.CustomTemplate, &p.LastUpdated); err != nil {
		return nil, err
	}
	p.ProjectID = derefString(projectID)
	p.TemplateID = derefString(templateID)
	p.Milestones = []model.Milestone{}
	return &p, nil
}

func scanMilestone(row pgx.Row) (string, model.Milestone, error) {
	var (
		studentID string
		m         model.Milestone
	)
	err := row.Scan(
		&studentID,
		&m.Title,
		&m.Description,
		&m.EstimatedDays,
		&m.DueDate,
		&m.Status,
		&m.Progress,
		&m.Locked,
		&m.FileURL,
		&m.ApprovedByTeacher,
		&m.CompletedAt,
		&m.Notes,
		&m.Order,
	)
	return studentID, m, err
}

func saveProgress(ctx context.Context, tx pgx.Tx, p *model.Progress) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO progress (student_id, project_id, template_id, overall_progress, custom_template, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			template_id = EXCLUDED.template_id,
			overall_progress = EXCLUDED.overall_progress,
			custom_template = EXCLUDED.custom_template,
			last_updated = EXCLUDED.last_updated
	`, p.StudentID, nullString(p.ProjectID), nullString(p.TemplateID), p.OverallProgress, p.CustomTemplate, p.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM milestones WHERE student_id = $1`, p.StudentID); err != nil {
		return fmt.Errorf("failed to clear milestones: %w", err)
	}
	if len(p.Milestones) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, m := range p.Milestones {
		batch.Queue(`
			INSERT INTO milestones (student_id, idx, title, description, estimated_days, due_date, status,
			                        progress, locked, file_url, approved_by_teacher, completed_at, notes, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, p.StudentID, i, m.Title, m.Description, m.EstimatedDays, m.DueDate, string(m.Status),
			m.Progress, m.Locked, m.FileURL, m.ApprovedByTeacher, m.CompletedAt, m.Notes, m.Order)
	}
	br := tx.SendBatch(ctx, batch)
	for range p.Milestones {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
	}
	return br.Close()
}
