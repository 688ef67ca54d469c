package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/model"
	"projectportal/pkg/logger"
	"projectportal/pkg/trace"
	"projectportal/pkg/validate"
)

var (
	ErrNotFound         = errors.New("project not found")
	ErrAlreadySubmitted = errors.New("project already submitted: resubmission is allowed only after rejection")
	ErrNotGuide         = errors.New("only the project's guide may do this")
	ErrNotReviewable    = errors.New("project is not awaiting review")
)

// Repository persists projects. SaveWithEvents writes the project and the
// events to the outbox in one transaction.
type Repository interface {
	GetByStudent(ctx context.Context, studentID string) (*model.Project, error)
	Upsert(ctx context.Context, p *model.Project) error
	SaveWithEvents(ctx context.Context, p *model.Project, events []model.Event) error
	ListByGuide(ctx context.Context, guideID string) ([]model.Project, error)
	ListTitles(ctx context.Context) ([]TitleRef, error)
}

// Guides resolves a student's allocated teacher. A nil allocation means
// the student has no guide yet.
type Guides interface {
	ForStudent(ctx context.Context, studentID string) (*model.Allocation, error)
}

// Milestones prepares the student's progress document on submission.
type Milestones interface {
	EnsureStandardMilestones(ctx context.Context, studentID, projectID string) (*model.Progress, error)
}

type SubmitInput struct {
	Title    string `json:"title" validate:"notblank,max=300"`
	Abstract string `json:"abstract" validate:"max=10000"`
	FileURL  string `json:"file_url" validate:"omitempty,max=2048"`
}

type ReviewInput struct {
	StudentID string `json:"student_id" validate:"required"`
	Approve   bool   `json:"approve"`
	Feedback  string `json:"feedback" validate:"max=5000"`
}

type Service struct {
	repo       Repository
	guides     Guides
	milestones Milestones
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, guides Guides, milestones Milestones, logger *zap.Logger) *Service {
	return &Service{repo: repo, guides: guides, milestones: milestones, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, studentID string) (*model.Project, error) {
	return s.repo.GetByStudent(ctx, studentID)
}

// Submit creates or resubmits the student's project, links the allocated
// guide and makes sure the standard milestones exist.
func (s *Service) Submit(ctx context.Context, studentID string, in SubmitInput) (*model.ProjectWithClash, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != model.ProjectRejected {
		return nil, ErrAlreadySubmitted
	}

	now := s.now().UTC()
	p := existing
	if p == nil {
		p = &model.Project{ID: uuid.NewString(), StudentID: studentID, CreatedAt: now}
	}
	p.Title = in.Title
	p.Abstract = in.Abstract
	p.FileURL = in.FileURL
	p.Status = model.ProjectSubmitted
	p.SubmittedAt = &now
	p.UpdatedAt = now

	alloc, err := s.guides.ForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guide: %w", err)
	}
	if alloc != nil {
		p.GuideID = alloc.TeacherID
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}
	if _, err := s.milestones.EnsureStandardMilestones(ctx, studentID, p.ID); err != nil {
		return nil, fmt.Errorf("failed to prepare milestones: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("project submitted",
		zap.String("project_id", p.ID),
		zap.String("student_id", studentID),
		zap.String("guide_id", p.GuideID),
	)
	return s.withClash(ctx, *p)
}

// Review approves or rejects a student's project. Approval emits
// project.approved in the same transaction as the status change; approving
// an already approved project changes nothing.
func (s *Service) Review(ctx context.Context, teacherID string, in ReviewInput) (*model.Project, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if p.GuideID != teacherID {
		return nil, ErrNotGuide
	}
	if p.Status == model.ProjectDraft || p.Status == model.ProjectCompleted {
		return nil, ErrNotReviewable
	}
	if in.Approve && p.Status == model.ProjectApproved {
		return p, nil
	}

	now := s.now().UTC()
	if in.Feedback != "" {
		p.Feedback = in.Feedback
	}
	p.UpdatedAt = now

	var events []model.Event
	if in.Approve {
		p.Status = model.ProjectApproved
		id := uuid.New()
		events = append(events, model.Event{
			ID:            id,
			RoutingKey:    mqcontract.RoutingProjectApproved,
			AggregateType: "project",
			AggregateID:   p.ID,
			Payload: mqcontract.ProjectApprovedPayload{
				EventID:    id.String(),
				ProjectID:  p.ID,
				StudentID:  p.StudentID,
				TeacherID:  teacherID,
				ApprovedAt: now,
				TraceID:    trace.FromContext(ctx),
			},
		})
	} else {
		p.Status = model.ProjectRejected
	}

	if err := s.repo.SaveWithEvents(ctx, p, events); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	logger.WithTrace(ctx, s.logger).Info("project reviewed",
		zap.String("project_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.String("teacher_id", teacherID),
	)
	return p, nil
}

// UpdateDueDate sets the project deadline. Milestone due dates are not
// touched; applying a template with the deadline prorates them.
func (s *Service) UpdateDueDate(ctx context.Context, teacherID, studentID string, due time.Time) (*model.Project, error) {
	if !due.After(s.now()) {
		return nil, validate.NewError("due date must be in the future",
			validate.FieldError{Field: "due_date", Error: "must be in the future"})
	}
	p, err := s.repo.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if p.GuideID != teacherID {
		return nil, ErrNotGuide
	}
	due = due.UTC()
	p.DueDate = &due
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveWithEvents(ctx, p, nil); err != nil {
		return nil, fmt.Errorf("failed to save due date: %w", err)
	}
	return p, nil
}

// ListForGuide returns the teacher's projects flagged for title clashes
// against every other project.
func (s *Service) ListForGuide(ctx context.Context, teacherID string) ([]model.ProjectWithClash, error) {
	projects, err := s.repo.ListByGuide(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	titles, err := s.repo.ListTitles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectWithClash, 0, len(projects))
	for _, p := range projects {
		out = append(out, flag(p, titles))
	}
	return out, nil
}

func (s *Service) withClash(ctx context.Context, p model.Project) (*model.ProjectWithClash, error) {
	titles, err := s.repo.ListTitles(ctx)
	if err != nil {
		return nil, err
	}
	out := flag(p, titles)
	return &out, nil
}

func flag(p model.Project, titles []TitleRef) model.ProjectWithClash {
	out := model.ProjectWithClash{Project: p}
	if other, score, clash := FindClash(p.ID, p.Title, titles); clash {
		out.TitleClash = true
		out.ClashWithID = other.ID
		out.Similarity = score
	}
	return out
}
