package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dbcontract "projectportal/contracts/db"
	"projectportal/internal/chat"
	"projectportal/pkg/logger"
	"projectportal/pkg/metrics"
)

type NotificationStore interface {
	Insert(ctx context.Context, n *dbcontract.Notification) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]dbcontract.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string) error
}

// NotificationService stores inbox rows and pushes them to live sessions.
type NotificationService struct {
	store  NotificationStore
	fanout chat.Fanout
	logger *zap.Logger
}

func NewNotificationService(store NotificationStore, fanout chat.Fanout, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, fanout: fanout, logger: logger}
}

// Notify stores one notification per (user, source event) and pushes it to
// the user's personal room. A redelivered event is stored and pushed once.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, message, sourceID string) error {
	n := &dbcontract.Notification{
		ID:       uuid.NewString(),
		UserID:   userID,
		Kind:     kind,
		Message:  message,
		SourceID: sourceID,
	}
	inserted, err := s.store.Insert(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	if !inserted {
		logger.WithTrace(ctx, s.logger).Debug("notification already stored",
			zap.String("user_id", userID),
			zap.String("source_id", sourceID),
		)
		return nil
	}
	metrics.IncrementNotification(kind)

	frame, err := chat.NewFrame(chat.EventNotification, n)
	if err != nil {
		return nil
	}
	if err := s.fanout.Deliver(ctx, []string{chat.PersonalRoom(userID)}, frame); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("notification push failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]dbcontract.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	return s.store.MarkAsRead(ctx, userID, id)
}
