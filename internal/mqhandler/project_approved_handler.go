package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/progress"
	"projectportal/pkg/logger"
	"projectportal/pkg/util"
)

const projectApprovedHandlerName = "project_approved_autocomplete"

// ProjectApprovedHandler completes the proposal milestone once a project is
// approved.
type ProjectApprovedHandler struct {
	completer MilestoneCompleter
	dedup     Deduplicator
	logger    *zap.Logger
}

func NewProjectApprovedHandler(completer MilestoneCompleter, dedup Deduplicator, logger *zap.Logger) *ProjectApprovedHandler {
	return &ProjectApprovedHandler{
		completer: completer,
		dedup:     dedup,
		logger:    logger,
	}
}

func (h *ProjectApprovedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.ProjectApprovedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal project approved payload", zap.Error(err))
		return err
	}
	if p.StudentID == "" || p.EventID == "" {
		return util.Permanent(fmt.Errorf("project approved payload missing student_id or event_id"))
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("event_id", p.EventID),
		zap.String("student_id", p.StudentID),
		zap.String("project_id", p.ProjectID),
	)

	if !h.dedup.AcquireOnce(ctx, projectApprovedHandlerName, p.EventID) {
		return nil
	}

	_, err := h.completer.AutoCompleteMilestone(ctx, p.StudentID, 0)
	switch {
	case err == nil:
		log.Info("Proposal milestone auto-completed")
		return nil
	case errors.Is(err, progress.ErrNotFound), errors.Is(err, progress.ErrLocked):
		h.dedup.Release(ctx, projectApprovedHandlerName, p.EventID)
		log.Warn("Proposal milestone cannot be auto-completed", zap.Error(err))
		return util.Permanent(err)
	default:
		h.dedup.Release(ctx, projectApprovedHandlerName, p.EventID)
		log.Error("Failed to auto-complete proposal milestone", zap.Error(err))
		return err
	}
}
