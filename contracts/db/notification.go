package db

import "time"

// Notification 表示 notifications 表的完整结构
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	SourceID  string    `json:"source_id"` // 触发通知的事件 ID，用于幂等插入
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
