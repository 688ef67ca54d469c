package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/pkg/logger"
	"projectportal/pkg/util"
)

// MilestoneNotificationHandler turns milestone events into inbox rows and
// live notification frames. Inserts are idempotent on the event id, so
// redelivery is harmless.
type MilestoneNotificationHandler struct {
	notifier Notifier
	guides   Guides
	logger   *zap.Logger
}

func NewMilestoneNotificationHandler(notifier Notifier, guides Guides, logger *zap.Logger) *MilestoneNotificationHandler {
	return &MilestoneNotificationHandler{
		notifier: notifier,
		guides:   guides,
		logger:   logger,
	}
}

func (h *MilestoneNotificationHandler) HandleCompleted(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.MilestoneCompletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal milestone completed payload", zap.Error(err))
		return err
	}
	if p.StudentID == "" || p.EventID == "" {
		return util.Permanent(fmt.Errorf("milestone completed payload missing ids"))
	}

	msg := fmt.Sprintf("Milestone %d \"%s\" is completed", p.Index+1, p.Title)
	if err := h.notifier.Notify(ctx, p.StudentID, mqcontract.RoutingMilestoneCompleted, msg, p.EventID); err != nil {
		return err
	}
	return h.notifyGuide(ctx, p.StudentID, mqcontract.RoutingMilestoneCompleted,
		fmt.Sprintf("Your student completed milestone %d \"%s\" (%s)", p.Index+1, p.Title, p.CompletedBy), p.EventID)
}

func (h *MilestoneNotificationHandler) HandleUnlocked(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.MilestoneUnlockedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal milestone unlocked payload", zap.Error(err))
		return err
	}
	if p.StudentID == "" || p.EventID == "" {
		return util.Permanent(fmt.Errorf("milestone unlocked payload missing ids"))
	}

	msg := fmt.Sprintf("Milestone %d \"%s\" is now unlocked", p.Index+1, p.Title)
	if p.DueDate != nil {
		msg += fmt.Sprintf(", due %s", p.DueDate.Format("2006-01-02"))
	}
	return h.notifier.Notify(ctx, p.StudentID, mqcontract.RoutingMilestoneUnlocked, msg, p.EventID)
}

func (h *MilestoneNotificationHandler) HandleOverdue(ctx context.Context, raw json.RawMessage) error {
	var p mqcontract.MilestoneOverduePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal milestone overdue payload", zap.Error(err))
		return err
	}
	if p.StudentID == "" || p.EventID == "" {
		return util.Permanent(fmt.Errorf("milestone overdue payload missing ids"))
	}

	due := p.DueDate.Format("2006-01-02")
	msg := fmt.Sprintf("Milestone %d \"%s\" was due on %s", p.Index+1, p.Title, due)
	if err := h.notifier.Notify(ctx, p.StudentID, mqcontract.RoutingMilestoneOverdue, msg, p.EventID); err != nil {
		return err
	}
	return h.notifyGuide(ctx, p.StudentID, mqcontract.RoutingMilestoneOverdue,
		fmt.Sprintf("Your student's milestone %d \"%s\" is overdue since %s", p.Index+1, p.Title, due), p.EventID)
}

func (h *MilestoneNotificationHandler) notifyGuide(ctx context.Context, studentID, kind, msg, sourceID string) error {
	alloc, err := h.guides.ForStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if alloc == nil {
		logger.WithTrace(ctx, h.logger).Debug("No guide to notify", zap.String("student_id", studentID))
		return nil
	}
	return h.notifier.Notify(ctx, alloc.TeacherID, kind, msg, sourceID)
}
