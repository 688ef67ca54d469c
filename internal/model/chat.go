package model

import "time"

type RoomType string

const (
	RoomDirect    RoomType = "direct"
	RoomBroadcast RoomType = "broadcast"
)

// ChatMessage is immutable once persisted. JSON keys stay camelCase for the
// browser client.
type ChatMessage struct {
	ID         string    `json:"id"`
	RoomType   RoomType  `json:"roomType"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	ReadBy     []string  `json:"readBy"`
}
