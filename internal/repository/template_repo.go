package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projectportal/internal/model"
	"projectportal/internal/template"
)

type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const selectTemplates = `
    SELECT id, name, description, category, milestones, created_by, is_default, is_public, created_at, updated_at
    FROM templates
`

func (r *TemplateRepository) ListVisible(ctx context.Context, userID string) ([]model.Template, error) {
	rows, err := r.db.Query(ctx, selectTemplates+`
        WHERE is_default OR is_public OR created_by = $1
        ORDER BY is_default DESC, created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTemplate)
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*model.Template, error) {
	rows, err := r.db.Query(ctx, selectTemplates+`WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	t, err := pgx.CollectOneRow(rows, scanTemplate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	milestones, err := json.Marshal(t.Milestones)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO templates (id, name, description, category, milestones, created_by, is_default, is_public, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, t.ID, t.Name, t.Description, string(t.Category), milestones, nullString(t.CreatedBy), t.IsDefault, t.IsPublic, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *TemplateRepository) Update(ctx context.Context, userID string, t *model.Template) error {
	milestones, err := json.Marshal(t.Milestones)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE templates
        SET name = $3, description = $4, category = $5, milestones = $6, is_public = $7, updated_at = $8
        WHERE id = $1 AND created_by = $2 AND NOT is_default
    `, t.ID, userID, t.Name, t.Description, string(t.Category), milestones, t.IsPublic, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM templates WHERE id = $1 AND created_by = $2 AND NOT is_default`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n)
	return n, err
}

func scanTemplate(row pgx.CollectableRow) (model.Template, error) {
	var (
		t          model.Template
		milestones []byte
		createdBy  *string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &milestones, &createdBy,
		&t.IsDefault, &t.IsPublic, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	t.CreatedBy = derefString(createdBy)
	if err := json.Unmarshal(milestones, &t.Milestones); err != nil {
		return t, fmt.Errorf("failed to decode milestones of template %s: %w", t.ID, err)
	}
	return t, nil
}
