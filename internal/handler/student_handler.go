package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectportal/internal/progress"
	"projectportal/internal/project"
	"projectportal/internal/service"
)

type StudentHandler struct {
	engine      *progress.Engine
	projects    *project.Service
	allocations *service.AllocationService
	users       service.UserLookup
	logger      *zap.Logger
	now         func() time.Time
}

func NewStudentHandler(
	engine *progress.Engine,
	projects *project.Service,
	allocations *service.AllocationService,
	users service.UserLookup,
	logger *zap.Logger,
) *StudentHandler {
	return &StudentHandler{
		engine:      engine,
		projects:    projects,
		allocations: allocations,
		users:       users,
		logger:      logger,
		now:         time.Now,
	}
}

// GetProgress handles GET /student/progress
func (h *StudentHandler) GetProgress(c *gin.Context) {
	p, err := h.engine.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p.View(h.now())})
}

// UpdateMilestone handles PUT /student/progress/milestones/:index
func (h *StudentHandler) UpdateMilestone(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, h.logger, progress.ErrInvalidIndex)
		return
	}
	var req progress.MilestoneUpdate
	if !bindJSON(c, h.logger, &req) {
		return
	}
	p, err := h.engine.UpdateMilestone(c.Request.Context(), principal(c).UserID, index, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": p.View(h.now())})
}

// SubmitProject handles POST /student/project
func (h *StudentHandler) SubmitProject(c *gin.Context) {
	var req project.SubmitInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	p, err := h.projects.Submit(c.Request.Context(), principal(c).UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p})
}

// GetProject handles GET /student/project
func (h *StudentHandler) GetProject(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// GetGuide handles GET /student/guide
func (h *StudentHandler) GetGuide(c *gin.Context) {
	ctx := c.Request.Context()
	a, err := h.allocations.ForStudent(ctx, principal(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if a == nil {
		c.JSON(http.StatusOK, gin.H{"guide": nil})
		return
	}
	guide, err := h.users.FindByID(ctx, a.TeacherID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guide":      guide,
		"allocation": a,
	})
}
