package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/progress"
	"projectportal/internal/project"
	"projectportal/internal/service"
	"projectportal/pkg/rbac"
)

type TeacherHandler struct {
	engine      *progress.Engine
	projects    *project.Service
	allocations *service.AllocationService
	logger      *zap.Logger
	now         func() time.Time
}

func NewTeacherHandler(
	engine *progress.Engine,
	projects *project.Service,
	allocations *service.AllocationService,
	logger *zap.Logger,
) *TeacherHandler {
	return &TeacherHandler{
		engine:      engine,
		projects:    projects,
		allocations: allocations,
		logger:      logger,
		now:         time.Now,
	}
}

// guardStudent lets admins through and requires teachers to be the
// student's allocated guide.
func guardStudent(ctx context.Context, allocations *service.AllocationService, p model.Principal, studentID string) error {
	if p.Role == rbac.RoleAdmin {
		return nil
	}
	ok, err := allocations.IsGuide(ctx, p.UserID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// StudentsProgress handles GET /teacher/students/progress
func (h *TeacherHandler) StudentsProgress(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.allocations.StudentsOf(ctx, principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	docs, err := h.engine.ListForStudents(ctx, ids)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	now := h.now()
	views := make([]*model.Progress, len(docs))
	for i, d := range docs {
		views[i] = d.View(now)
	}
	c.JSON(http.StatusOK, gin.H{"students": views})
}

type approveRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Index     *int   `json:"index" validate:"required,min=0"`
}

// ApproveMilestone handles POST /teacher/milestones/approve
func (h *TeacherHandler) ApproveMilestone(c *gin.Context) {
	var req approveRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := guardStudent(ctx, h.allocations, principal(c), req.StudentID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.engine.ApproveDocument(ctx, req.StudentID, *req.Index)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p.View(h.now())})
}

// ReviewProject handles POST /teacher/projects/review
func (h *TeacherHandler) ReviewProject(c *gin.Context) {
	var req project.ReviewInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	p, err := h.projects.Review(c.Request.Context(), principal(c).UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

type dueDateRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// UpdateDueDate handles PUT /teacher/projects/due-date
func (h *TeacherHandler) UpdateDueDate(c *gin.Context) {
	var req dueDateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	p, err := h.projects.UpdateDueDate(c.Request.Context(), principal(c).UserID, req.StudentID, req.DueDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// ListProjects handles GET /teacher/projects
func (h *TeacherHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListForGuide(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}
