package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectportal/internal/chat"
	"projectportal/internal/progress"
	"projectportal/internal/project"
	"projectportal/internal/repository"
	"projectportal/internal/service"
	"projectportal/pkg/logger"
	"projectportal/pkg/outbox"
	"projectportal/pkg/rbac"
	"projectportal/pkg/validate"
)

// ErrForbidden is returned when the caller is authenticated but is not
// related to the target student.
var ErrForbidden = errors.New("not allowed for this student")

var errInvalidRequest = errors.New("invalid request body")

type apiError struct {
	status int
	code   string
}

// classify maps a domain error to its HTTP status and machine code.
func classify(err error) apiError {
	var verr *validate.Error
	var denied *rbac.PermissionDeniedError
	switch {
	case errors.As(err, &verr), errors.Is(err, errInvalidRequest):
		return apiError{http.StatusBadRequest, "validation_error"}
	case errors.As(err, &denied), errors.Is(err, ErrForbidden):
		return apiError{http.StatusForbidden, "forbidden"}

	case errors.Is(err, progress.ErrInvalidIndex):
		return apiError{http.StatusNotFound, "invalid_index"}
	case errors.Is(err, progress.ErrNotFound),
		errors.Is(err, project.ErrNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, outbox.ErrEventNotFound):
		return apiError{http.StatusNotFound, "not_found"}
	case errors.Is(err, progress.ErrLocked):
		return apiError{http.StatusConflict, "locked"}
	case errors.Is(err, progress.ErrApprovalRequired):
		return apiError{http.StatusForbidden, "approval_required"}
	case errors.Is(err, progress.ErrNoDocument):
		return apiError{http.StatusConflict, "no_document"}
	case errors.Is(err, progress.ErrInvalidTemplate):
		return apiError{http.StatusUnprocessableEntity, "invalid_template"}

	case errors.Is(err, project.ErrAlreadySubmitted):
		return apiError{http.StatusConflict, "already_submitted"}
	case errors.Is(err, project.ErrNotGuide):
		return apiError{http.StatusForbidden, "not_guide"}
	case errors.Is(err, project.ErrNotReviewable):
		return apiError{http.StatusConflict, "not_reviewable"}

	case errors.Is(err, chat.ErrInvalidPayload):
		return apiError{http.StatusBadRequest, "invalid_payload"}
	case errors.Is(err, chat.ErrModeNotAllowed):
		return apiError{http.StatusForbidden, "mode_not_allowed"}

	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, repository.ErrDuplicate):
		return apiError{http.StatusConflict, "duplicate"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return apiError{http.StatusUnauthorized, "invalid_credentials"}
	case errors.Is(err, service.ErrInvalidToken):
		return apiError{http.StatusUnauthorized, "unauthorized"}
	}
	return apiError{http.StatusInternalServerError, "internal"}
}

// respondError writes {"error","code"} and logs server-side failures.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(ae.status, gin.H{"error": "internal server error", "code": ae.code})
		return
	}

	body := gin.H{"error": err.Error(), "code": ae.code}
	var verr *validate.Error
	if errors.As(err, &verr) {
		if fields := verr.FieldMap(); fields != nil {
			body["fields"] = fields
		}
	}
	c.JSON(ae.status, body)
}

// bindJSON decodes the body into obj. Validation failures from the gin
// validator come back as *validate.Error; anything else is a malformed body.
func bindJSON(c *gin.Context, log *zap.Logger, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verr *validate.Error
		if !errors.As(err, &verr) {
			err = errInvalidRequest
		}
		respondError(c, log, err)
		return false
	}
	return true
}
