package progress

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/model"
	"projectportal/pkg/logger"
	"projectportal/pkg/metrics"
	"projectportal/pkg/trace"
	"projectportal/pkg/util"
	"projectportal/pkg/validate"
)

// MilestoneUpdate is a student's edit of one milestone. Nil fields are left alone.
type MilestoneUpdate struct {
	Progress *int                   `json:"progress" validate:"omitempty,min=0,max=100"`
	Status   *model.MilestoneStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Notes    *string                `json:"notes" validate:"omitempty,max=5000"`
	FileURL  *string                `json:"file_url" validate:"omitempty,max=2048"`
}

// MilestoneInput is one entry of a teacher's custom milestone list.
type MilestoneInput struct {
	Title         string                `json:"title" validate:"notblank,max=200"`
	Description   string                `json:"description" validate:"max=2000"`
	EstimatedDays int                   `json:"estimated_days" validate:"min=0,max=3650"`
	DueDate       *time.Time            `json:"due_date"`
	Status        model.MilestoneStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Progress      int                   `json:"progress" validate:"min=0,max=100"`
	Notes         string                `json:"notes" validate:"max=5000"`
}

// Engine owns milestone state. Mutations for one student are serialized in
// process by a keyed lock and across processes by the store's atomic update.
type Engine struct {
	store     Store
	templates TemplateSource
	locks     *util.KeyedMutex
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(store Store, templates TemplateSource, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		templates: templates,
		locks:     util.NewKeyedMutex(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Get(ctx context.Context, studentID string) (*model.Progress, error) {
	return e.store.Get(ctx, studentID)
}

func (e *Engine) ListForStudents(ctx context.Context, studentIDs []string) ([]*model.Progress, error) {
	if len(studentIDs) == 0 {
		return []*model.Progress{}, nil
	}
	return e.store.ListByStudents(ctx, studentIDs)
}

// ApplyTemplate replaces the student's milestones with a fresh set built from
// the template, prorating due dates when a deadline is given.
func (e *Engine) ApplyTemplate(ctx context.Context, studentID, templateID string, projectDueDate *time.Time) (*model.Progress, error) {
	tpl, err := e.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	fresh, err := InitializeMilestones(tpl.Milestones)
	if err != nil {
		return nil, err
	}

	return e.mutate(ctx, "apply_template", studentID, func(p *model.Progress, _ bool) ([]model.Event, error) {
		now := e.now()
		if projectDueDate != nil {
			if !projectDueDate.After(now) {
				return nil, validate.NewError("project due date must be in the future",
					validate.FieldError{Field: "project_due_date", Error: "must be in the future"})
			}
			ProrateDueDates(fresh, now, *projectDueDate)
		}
		p.Milestones = fresh
		p.TemplateID = tpl.ID
		p.CustomTemplate = false
		p.Recompute(now)
		return nil, nil
	})
}

// EnsureStandardMilestones creates the five standard milestones when the
// student has none, and links the project either way.
func (e *Engine) EnsureStandardMilestones(ctx context.Context, studentID, projectID string) (*model.Progress, error) {
	return e.mutate(ctx, "ensure_standard", studentID, func(p *model.Progress, _ bool) ([]model.Event, error) {
		if len(p.Milestones) > 0 {
			if p.ProjectID == projectID {
				return nil, ErrUnchanged
			}
			p.ProjectID = projectID
			return nil, nil
		}
		p.ProjectID = projectID
		p.Milestones = StandardMilestones()
		p.Recompute(e.now())
		return nil, nil
	})
}

// UpdateMilestone applies a student's edit. Completing a milestone after the
// first requires prior teacher approval.
func (e *Engine) UpdateMilestone(ctx context.Context, studentID string, index int, upd MilestoneUpdate) (*model.Progress, error) {
	return e.mutate(ctx, "update_milestone", studentID, func(p *model.Progress, exists bool) ([]model.Event, error) {
		m, err := target(p, exists, index)
		if err != nil {
			return nil, err
		}
		if m.Locked {
			return nil, ErrLocked
		}
		if err := validate.Struct(upd); err != nil {
			return nil, err
		}

		completing := upd.Status != nil && *upd.Status == model.MilestoneCompleted
		if upd.Status != nil && !completing && m.Status == model.MilestoneCompleted {
			return nil, validate.NewError("completed milestone cannot be reopened",
				validate.FieldError{Field: "status", Error: "completed milestone cannot be reopened"})
		}
		if completing && index > 0 && !m.ApprovedByTeacher {
			return nil, ErrApprovalRequired
		}

		if upd.Progress != nil {
			m.Progress = *upd.Progress
		}
		if upd.Notes != nil {
			m.Notes = *upd.Notes
		}
		if upd.FileURL != nil && strings.TrimSpace(*upd.FileURL) != "" {
			m.FileURL = *upd.FileURL
		}

		now := e.now()
		var events []model.Event
		switch {
		case completing && m.Status == model.MilestoneCompleted:
		case completing:
			events = e.complete(ctx, p, index, now, mqcontract.CompletedByStudent, false)
		case upd.Status != nil:
			m.Status = *upd.Status
		}
		p.Recompute(now)
		return events, nil
	})
}

// ApproveDocument records teacher sign-off and completes the milestone.
// Approving an already approved and completed milestone is a no-op.
func (e *Engine) ApproveDocument(ctx context.Context, studentID string, index int) (*model.Progress, error) {
	return e.mutate(ctx, "approve_document", studentID, func(p *model.Progress, exists bool) ([]model.Event, error) {
		m, err := target(p, exists, index)
		if err != nil {
			return nil, err
		}
		if m.ApprovedByTeacher && m.Status == model.MilestoneCompleted {
			return nil, ErrUnchanged
		}
		if strings.TrimSpace(m.FileURL) == "" {
			return nil, ErrNoDocument
		}
		if m.Locked {
			return nil, ErrLocked
		}

		now := e.now()
		m.ApprovedByTeacher = true
		if m.Status == model.MilestoneCompleted {
			// completed earlier through another path, only the sign-off is new
			m.Progress = 100
			p.Recompute(now)
			return nil, nil
		}
		events := e.complete(ctx, p, index, now, mqcontract.CompletedByApproval, true)
		p.Recompute(now)
		return events, nil
	})
}

// AutoCompleteMilestone completes a milestone on a system trigger, bypassing
// the approval gate. Already completed milestones are left alone so repeated
// deliveries of the trigger are harmless.
func (e *Engine) AutoCompleteMilestone(ctx context.Context, studentID string, index int) (*model.Progress, error) {
	return e.mutate(ctx, "auto_complete", studentID, func(p *model.Progress, exists bool) ([]model.Event, error) {
		m, err := target(p, exists, index)
		if err != nil {
			return nil, err
		}
		if m.Status == model.MilestoneCompleted {
			return nil, ErrUnchanged
		}
		if m.Locked {
			return nil, ErrLocked
		}

		now := e.now()
		events := e.complete(ctx, p, index, now, mqcontract.CompletedBySystem, true)
		p.Recompute(now)
		return events, nil
	})
}

// ReplaceMilestones overwrites the milestone definitions with a teacher's
// custom list. Documents and approvals stay attached to their position; locks
// are re-derived from the statuses.
func (e *Engine) ReplaceMilestones(ctx context.Context, studentID string, inputs []MilestoneInput) (*model.Progress, error) {
	req := struct {
		Milestones []MilestoneInput `json:"milestones" validate:"required,min=1,dive"`
	}{Milestones: inputs}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "replace_milestones", studentID, func(p *model.Progress, exists bool) ([]model.Event, error) {
		if !exists {
			return nil, ErrProgressNotFound
		}
		now := e.now()
		next := make([]model.Milestone, len(inputs))
		for i, in := range inputs {
			m := model.Milestone{
				Title:         in.Title,
				Description:   in.Description,
				EstimatedDays: in.EstimatedDays,
				DueDate:       in.DueDate,
				Status:        in.Status,
				Progress:      in.Progress,
				Notes:         in.Notes,
			}
			if m.Status == "" {
				m.Status = model.MilestonePending
			}
			if i < len(p.Milestones) {
				old := p.Milestones[i]
				m.FileURL = old.FileURL
				m.ApprovedByTeacher = old.ApprovedByTeacher
				if m.Status == model.MilestoneCompleted {
					m.CompletedAt = old.CompletedAt
				}
			}
			if m.Status == model.MilestoneCompleted && m.CompletedAt == nil {
				t := now
				m.CompletedAt = &t
			}
			next[i] = m
		}
		relock(next)
		p.Milestones = next
		p.CustomTemplate = true
		p.Recompute(now)
		return nil, nil
	})
}

func target(p *model.Progress, exists bool, index int) (*model.Milestone, error) {
	if !exists {
		return nil, ErrProgressNotFound
	}
	if index < 0 || index >= len(p.Milestones) {
		return nil, ErrInvalidIndex
	}
	return &p.Milestones[index], nil
}

// complete marks milestone index completed and unlocks its successor.
func (e *Engine) complete(ctx context.Context, p *model.Progress, index int, now time.Time, by string, full bool) []model.Event {
	m := &p.Milestones[index]
	m.Status = model.MilestoneCompleted
	if full {
		m.Progress = 100
	}
	if m.CompletedAt == nil {
		t := now
		m.CompletedAt = &t
	}

	traceID := trace.FromContext(ctx)
	completedID := uuid.New()
	events := []model.Event{{
		ID:            completedID,
		RoutingKey:    mqcontract.RoutingMilestoneCompleted,
		AggregateType: "progress",
		AggregateID:   p.StudentID,
		Payload: mqcontract.MilestoneCompletedPayload{
			EventID:     completedID.String(),
			StudentID:   p.StudentID,
			Index:       index,
			Title:       m.Title,
			CompletedBy: by,
			CompletedAt: *m.CompletedAt,
			TraceID:     traceID,
		},
	}}

	if index+1 < len(p.Milestones) {
		next := &p.Milestones[index+1]
		if next.Locked || next.Status == model.MilestonePending {
			next.Locked = false
			next.Status = model.MilestoneInProgress
			unlockedID := uuid.New()
			events = append(events, model.Event{
				ID:            unlockedID,
				RoutingKey:    mqcontract.RoutingMilestoneUnlocked,
				AggregateType: "progress",
				AggregateID:   p.StudentID,
				Payload: mqcontract.MilestoneUnlockedPayload{
					EventID:   unlockedID.String(),
					StudentID: p.StudentID,
					Index:     index + 1,
					Title:     next.Title,
					DueDate:   next.DueDate,
					TraceID:   traceID,
				},
			})
		}
	}
	return events
}

// mutate serializes fn per student and records metrics for the outcome.
func (e *Engine) mutate(ctx context.Context, op, studentID string, fn func(p *model.Progress, exists bool) ([]model.Event, error)) (*model.Progress, error) {
	unlock := e.locks.Lock(studentID)
	defer unlock()

	start := time.Now()
	var emitted []model.Event
	doc, err := e.store.Update(ctx, studentID, func(p *model.Progress, exists bool) ([]model.Event, error) {
		events, err := fn(p, exists)
		emitted = events
		return events, err
	})

	log := logger.WithTrace(ctx, e.logger).With(
		zap.String("op", op),
		zap.String("student_id", studentID),
	)
	if err != nil {
		metrics.RecordProgressMutation(op, resultLabel(err), time.Since(start))
		log.Info("Progress mutation rejected", zap.Error(err))
		return nil, err
	}
	metrics.RecordProgressMutation(op, "ok", time.Since(start))

	for _, ev := range emitted {
		metrics.IncrementMilestoneTransition(strings.TrimPrefix(ev.RoutingKey, "milestone."))
	}
	log.Info("Progress updated",
		zap.Int("overall_progress", doc.OverallProgress),
		zap.Int("events", len(emitted)),
	)
	return doc, nil
}

func resultLabel(err error) string {
	var verr *validate.Error
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrApprovalRequired):
		return "approval_required"
	case errors.Is(err, ErrNoDocument):
		return "no_document"
	case errors.Is(err, ErrInvalidTemplate):
		return "invalid_template"
	case errors.As(err, &verr):
		return "validation_error"
	}
	return "error"
}
