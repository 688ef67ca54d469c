package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/project"
	"projectportal/pkg/otel"
	"projectportal/pkg/outbox"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, outbox: outboxRepo, logger: logger}
}

const selectProjects = `
    SELECT id, student_id, title, abstract, file_url, status, guide_id, submitted_at, due_date, feedback,
           created_at, updated_at
    FROM projects
`

func (r *ProjectRepository) GetByStudent(ctx context.Context, studentID string) (*model.Project, error) {
	rows, err := r.db.Query(ctx, selectProjects+`WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectOneRow(rows, scanProject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert writes the student's single project row.
func (r *ProjectRepository) Upsert(ctx context.Context, p *model.Project) error {
	return otel.Traced(ctx, "upsert", "projects", func(ctx context.Context) error {
		return upsertProject(ctx, r.db, p)
	})
}

// SaveWithEvents updates the project and queues events in one transaction.
func (r *ProjectRepository) SaveWithEvents(ctx context.Context, p *model.Project, events []model.Event) error {
	return otel.Traced(ctx, "update", "projects", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := upsertProject(ctx, tx, p); err != nil {
			return err
		}
		for _, e := range events {
			if err := outbox.InsertEventInTx(ctx, tx, r.outbox, e.ID, e.AggregateType, e.AggregateID, e.RoutingKey, e.Payload); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

func (r *ProjectRepository) ListByGuide(ctx context.Context, guideID string) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, selectProjects+`
        WHERE guide_id = $1
        ORDER BY submitted_at DESC NULLS LAST, updated_at DESC
    `, guideID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProject)
}

func (r *ProjectRepository) ListTitles(ctx context.Context) ([]project.TitleRef, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title FROM projects`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (project.TitleRef, error) {
		var t project.TitleRef
		err := row.Scan(&t.ID, &t.Title)
		return t, err
	})
}

func upsertProject(ctx context.Context, q querier, p *model.Project) error {
	_, err := q.Exec(ctx, `
        INSERT INTO projects (id, student_id, title, abstract, file_url, status, guide_id, submitted_at,
                              due_date, feedback, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (student_id) DO UPDATE SET
            title = EXCLUDED.title,
            abstract = EXCLUDED.abstract,
            file_url = EXCLUDED.file_url,
            status = EXCLUDED.status,
            guide_id = EXCLUDED.guide_id,
            submitted_at = EXCLUDED.submitted_at,
            due_date = EXCLUDED.due_date,
            feedback = EXCLUDED.feedback,
            updated_at = EXCLUDED.updated_at
    `, p.ID, p.StudentID, p.Title, p.Abstract, p.FileURL, string(p.Status), nullString(p.GuideID), p.SubmittedAt,
		p.DueDate, p.Feedback, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func scanProject(row pgx.CollectableRow) (model.Project, error) {
	var (
		p       model.Project
		guideID *string
	)
	err := row.Scan(&p.ID, &p.StudentID, &p.Title, &p.Abstract, &p.FileURL, &p.Status, &guideID,
		&p.SubmittedAt, &p.DueDate, &p.Feedback, &p.CreatedAt, &p.UpdatedAt)
	p.GuideID = derefString(guideID)
	return p, err
}
