package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectportal/internal/progress"
	"projectportal/internal/project"
	"projectportal/internal/service"
	"projectportal/internal/template"
)

type TemplateHandler struct {
	templates   *template.Service
	engine      *progress.Engine
	projects    *project.Service
	allocations *service.AllocationService
	logger      *zap.Logger
	now         func() time.Time
}

func NewTemplateHandler(
	templates *template.Service,
	engine *progress.Engine,
	projects *project.Service,
	allocations *service.AllocationService,
	logger *zap.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		templates:   templates,
		engine:      engine,
		projects:    projects,
		allocations: allocations,
		logger:      logger,
		now:         time.Now,
	}
}

// List handles GET /templates
func (h *TemplateHandler) List(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}

// Get handles GET /templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.templates.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

// Create handles POST /templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req template.Input
	if !bindJSON(c, h.logger, &req) {
		return
	}
	t, err := h.templates.Create(c.Request.Context(), principal(c).UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": t})
}

// Update handles PUT /templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	var req template.Input
	if !bindJSON(c, h.logger, &req) {
		return
	}
	t, err := h.templates.Update(c.Request.Context(), principal(c).UserID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

// Delete handles DELETE /templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), principal(c).UserID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type applyRequest struct {
	StudentID      string     `json:"student_id" validate:"required"`
	TemplateID     string     `json:"template_id" validate:"required"`
	ProjectDueDate *time.Time `json:"project_due_date"`
}

// Apply handles POST /templates/apply. Without an explicit deadline the
// student's project due date is used while it is still ahead; a passed
// project deadline leaves the template durations unprorated.
func (h *TemplateHandler) Apply(c *gin.Context) {
	var req applyRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := guardStudent(ctx, h.allocations, principal(c), req.StudentID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	due := req.ProjectDueDate
	if due == nil {
		p, err := h.projects.Get(ctx, req.StudentID)
		switch {
		case err == nil:
			if p.DueDate != nil && p.DueDate.After(h.now()) {
				due = p.DueDate
			}
		case !errors.Is(err, project.ErrNotFound):
			respondError(c, h.logger, err)
			return
		}
	}

	p, err := h.engine.ApplyTemplate(ctx, req.StudentID, req.TemplateID, due)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p.View(h.now())})
}

type replaceMilestonesRequest struct {
	Milestones []progress.MilestoneInput `json:"milestones" validate:"required,min=1,dive"`
}

// ReplaceMilestones handles PUT /templates/students/:studentId/milestones
func (h *TemplateHandler) ReplaceMilestones(c *gin.Context) {
	var req replaceMilestonesRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	ctx := c.Request.Context()
	studentID := c.Param("studentId")
	if err := guardStudent(ctx, h.allocations, principal(c), studentID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	p, err := h.engine.ReplaceMilestones(ctx, studentID, req.Milestones)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p.View(h.now())})
}
