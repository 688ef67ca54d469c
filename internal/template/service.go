package template

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/progress"
	"projectportal/pkg/validate"
)

// ErrNotFound also covers templates the caller does not own.
var ErrNotFound = progress.ErrTemplateNotFound

// Repository persists templates.
type Repository interface {
	// ListVisible returns defaults, public templates and those owned by userID.
	ListVisible(ctx context.Context, userID string) ([]model.Template, error)
	Get(ctx context.Context, id string) (*model.Template, error)
	Create(ctx context.Context, t *model.Template) error
	// Update and Delete affect only templates owned by userID that are not
	// defaults; they return ErrNotFound otherwise.
	Update(ctx context.Context, userID string, t *model.Template) error
	Delete(ctx context.Context, userID, id string) error
	Count(ctx context.Context) (int, error)
}

// Input is the editable part of a template.
type Input struct {
	Name        string                    `json:"name" validate:"notblank,max=120"`
	Description string                    `json:"description" validate:"max=1000"`
	Category    model.TemplateCategory    `json:"category" validate:"omitempty,oneof=web mobile research ml iot general"`
	Milestones  []model.TemplateMilestone `json:"milestones" validate:"required,min=1,dive"`
	IsPublic    bool                      `json:"is_public"`
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID string) ([]model.Template, error) {
	return s.repo.ListVisible(ctx, userID)
}

// GetTemplate resolves a template for the progress engine.
func (s *Service) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Template, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	t := &model.Template{
		ID:        uuid.NewString(),
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(t, in)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	s.logger.Info("template created", zap.String("template_id", t.ID), zap.String("created_by", userID))
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Template, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsDefault || t.CreatedBy != userID {
		return nil, ErrNotFound
	}
	apply(t, in)
	t.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, userID, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// SeedDefaults inserts the system templates when the store is empty.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	now := s.now().UTC()
	for _, t := range Defaults() {
		t.ID = uuid.NewString()
		t.IsDefault = true
		t.IsPublic = true
		t.CreatedAt = now
		t.UpdatedAt = now
		if err := s.repo.Create(ctx, &t); err != nil {
			return 0, fmt.Errorf("failed to seed template %q: %w", t.Name, err)
		}
	}
	s.logger.Info("default templates seeded", zap.Int("count", len(Defaults())))
	return len(Defaults()), nil
}

func apply(t *model.Template, in Input) {
	t.Name = in.Name
	t.Description = in.Description
	t.Category = in.Category
	if t.Category == "" {
		t.Category = model.CategoryGeneral
	}
	t.IsPublic = in.IsPublic
	t.Milestones = make([]model.TemplateMilestone, len(in.Milestones))
	copy(t.Milestones, in.Milestones)
	sort.SliceStable(t.Milestones, func(i, j int) bool { return t.Milestones[i].Order < t.Milestones[j].Order })
}
