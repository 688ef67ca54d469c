package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	dbcontract "projectportal/contracts/db"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores n once per (user, source event). It reports false when the
// row already existed, which happens on redelivery.
func (r *NotificationRepository) Insert(ctx context.Context, n *dbcontract.Notification) (bool, error) {
	r.logger.Debug("Inserting notification",
		zap.String("user_id", n.UserID),
		zap.String("kind", n.Kind),
		zap.String("source_id", n.SourceID),
	)

	query := `
        INSERT INTO notifications (id, user_id, kind, message, source_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, source_id) DO NOTHING
        RETURNING created_at
    `
	err := r.db.QueryRow(ctx, query, n.ID, n.UserID, n.Kind, n.Message, n.SourceID).Scan(&n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return false, err
	}
	return true, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]dbcontract.Notification, error) {
	query := `
        SELECT id, user_id, kind, message, source_id, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dbcontract.Notification, error) {
		var n dbcontract.Notification
		err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.SourceID, &n.IsRead, &n.CreatedAt)
		return n, err
	})
}

// MarkAsRead only touches the caller's own notification.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
