package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projectportal/internal/model"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// Save inserts an immutable chat message.
func (r *ChatRepository) Save(ctx context.Context, msg *model.ChatMessage) error {
	query := `
        INSERT INTO chat_messages (id, room_type, room_id, sender_id, receiver_id, text, read_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	readBy := msg.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		msg.ID, string(msg.RoomType), msg.RoomID, msg.SenderID, nullString(msg.ReceiverID), msg.Text, readBy, msg.CreatedAt)
	return err
}

// ListRoom returns the newest limit messages of a room, oldest first.
func (r *ChatRepository) ListRoom(ctx context.Context, roomType model.RoomType, roomID string, limit int) ([]model.ChatMessage, error) {
	query := `
        SELECT id, room_type, room_id, sender_id, receiver_id, text, read_by, created_at
        FROM (
            SELECT id, room_type, room_id, sender_id, receiver_id, text, read_by, created_at, seq
            FROM chat_messages
            WHERE room_type = $1 AND room_id = $2
            ORDER BY seq DESC
            LIMIT $3
        ) recent
        ORDER BY seq ASC
    `
	rows, err := r.db.Query(ctx, query, string(roomType), roomID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ChatMessage, error) {
		var (
			m          model.ChatMessage
			receiverID *string
		)
		err := row.Scan(&m.ID, &m.RoomType, &m.RoomID, &m.SenderID, &receiverID, &m.Text, &m.ReadBy, &m.CreatedAt)
		m.ReceiverID = derefString(receiverID)
		return m, err
	})
}
