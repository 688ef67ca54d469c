package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/repository"
	"projectportal/pkg/rbac"
	"projectportal/pkg/validate"
)

type AllocationStore interface {
	Upsert(ctx context.Context, a *model.Allocation) error
	ForStudent(ctx context.Context, studentID string) (*model.Allocation, error)
	ForTeacher(ctx context.Context, teacherID string) ([]model.Allocation, error)
	List(ctx context.Context) ([]model.Allocation, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type AllocateInput struct {
	StudentID string `json:"student_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// AllocationService lets admins assign guide teachers.
type AllocationService struct {
	store  AllocationStore
	users  UserLookup
	logger *zap.Logger
}

func NewAllocationService(store AllocationStore, users UserLookup, logger *zap.Logger) *AllocationService {
	return &AllocationService{store: store, users: users, logger: logger}
}

func (s *AllocationService) Allocate(ctx context.Context, adminID string, in AllocateInput) (*model.Allocation, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.expectRole(ctx, in.StudentID, rbac.RoleStudent, "student_id"); err != nil {
		return nil, err
	}
	if err := s.expectRole(ctx, in.TeacherID, rbac.RoleTeacher, "teacher_id"); err != nil {
		return nil, err
	}

	a := &model.Allocation{StudentID: in.StudentID, TeacherID: in.TeacherID, AssignedBy: adminID}
	if err := s.store.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save allocation: %w", err)
	}
	s.logger.Info("guide allocated",
		zap.String("student_id", a.StudentID),
		zap.String("teacher_id", a.TeacherID),
		zap.String("assigned_by", adminID),
	)
	return a, nil
}

func (s *AllocationService) expectRole(ctx context.Context, userID string, want rbac.Role, field string) error {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return validate.NewError("unknown user", validate.FieldError{Field: field, Error: "user does not exist"})
	}
	if err != nil {
		return err
	}
	if u.Role != want {
		return validate.NewError("wrong role", validate.FieldError{Field: field, Error: "user is not a " + want.String()})
	}
	return nil
}

func (s *AllocationService) List(ctx context.Context) ([]model.Allocation, error) {
	return s.store.List(ctx)
}

func (s *AllocationService) ForStudent(ctx context.Context, studentID string) (*model.Allocation, error) {
	return s.store.ForStudent(ctx, studentID)
}

// StudentsOf returns the ids of the students a teacher guides.
func (s *AllocationService) StudentsOf(ctx context.Context, teacherID string) ([]string, error) {
	allocs, err := s.store.ForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(allocs))
	for i, a := range allocs {
		ids[i] = a.StudentID
	}
	return ids, nil
}

// IsGuide reports whether teacherID guides studentID.
func (s *AllocationService) IsGuide(ctx context.Context, teacherID, studentID string) (bool, error) {
	a, err := s.store.ForStudent(ctx, studentID)
	if err != nil {
		return false, err
	}
	return a != nil && a.TeacherID == teacherID, nil
}
