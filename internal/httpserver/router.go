package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"projectportal/internal/chat"
	"projectportal/internal/handler"
	"projectportal/pkg/otel"
	"projectportal/pkg/rbac"
	"projectportal/pkg/validate"
)

// Handlers 汇总各路由处理器
type Handlers struct {
	Auth         *handler.AuthHandler
	Student      *handler.StudentHandler
	Teacher      *handler.TeacherHandler
	Template     *handler.TemplateHandler
	Admin        *handler.AdminHandler
	Chat         *handler.ChatHandler
	Notification *handler.NotificationHandler
	WS           http.Handler
}

// ReadyCheck 就绪检查，返回 nil 表示依赖可用
type ReadyCheck func(ctx context.Context) error

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, auth chat.Authenticator, ready map[string]ReadyCheck, logger *zap.Logger) *Router {
	binding.Validator = validate.GinValidator{}

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for name, check := range ready {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 实时聊天，token 通过 query 或 Authorization 传入
	r.GET("/ws", gin.WrapH(h.WS))

	// Public
	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)

	// Protected
	authed := r.Group("/")
	authed.Use(AuthMiddleware(auth))

	student := authed.Group("/student")
	{
		student.GET("/progress", RequirePermission(rbac.PermissionProgressReadOwn), h.Student.GetProgress)
		student.PUT("/progress/milestones/:index", RequirePermission(rbac.PermissionProgressUpdateOwn), h.Student.UpdateMilestone)
		student.POST("/project", RequirePermission(rbac.PermissionProjectSubmit), h.Student.SubmitProject)
		student.GET("/project", RequirePermission(rbac.PermissionProjectSubmit), h.Student.GetProject)
		student.GET("/guide", RequirePermission(rbac.PermissionProgressReadOwn), h.Student.GetGuide)
	}

	teacher := authed.Group("/teacher")
	{
		teacher.GET("/students/progress", RequirePermission(rbac.PermissionProgressReadStudents), h.Teacher.StudentsProgress)
		teacher.POST("/milestones/approve", RequirePermission(rbac.PermissionMilestoneApprove), h.Teacher.ApproveMilestone)
		teacher.POST("/projects/review", RequirePermission(rbac.PermissionProjectReview), h.Teacher.ReviewProject)
		teacher.PUT("/projects/due-date", RequirePermission(rbac.PermissionProjectReview), h.Teacher.UpdateDueDate)
		teacher.GET("/projects", RequirePermission(rbac.PermissionProjectReview), h.Teacher.ListProjects)
	}

	templates := authed.Group("/templates")
	{
		manage := RequirePermission(rbac.PermissionTemplateManage)
		apply := RequirePermission(rbac.PermissionTemplateApply)
		templates.GET("", manage, h.Template.List)
		templates.POST("", manage, h.Template.Create)
		templates.POST("/apply", apply, h.Template.Apply)
		templates.PUT("/students/:studentId/milestones", apply, h.Template.ReplaceMilestones)
		templates.GET("/:id", manage, h.Template.Get)
		templates.PUT("/:id", manage, h.Template.Update)
		templates.DELETE("/:id", manage, h.Template.Delete)
	}

	admin := authed.Group("/admin")
	{
		admin.POST("/allocations", RequirePermission(rbac.PermissionAllocationManage), h.Admin.Allocate)
		admin.GET("/allocations", RequirePermission(rbac.PermissionAllocationManage), h.Admin.ListAllocations)
		admin.POST("/outbox/replay", RequirePermission(rbac.PermissionOutboxReplay), h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", RequirePermission(rbac.PermissionOutboxReplay), h.Admin.ReplayFailedEvents)
	}

	chatGroup := authed.Group("/chat", RequirePermission(rbac.PermissionChat))
	{
		chatGroup.GET("/direct/:userId", h.Chat.Direct)
		chatGroup.GET("/broadcast", h.Chat.Broadcast)
	}

	notifications := authed.Group("/notifications", RequirePermission(rbac.PermissionNotifications))
	{
		notifications.GET("", h.Notification.List)
		notifications.POST("/:id/read", h.Notification.MarkRead)
	}

	return &Router{Engine: r}
}
