package mq

import "time"

const (
	RoutingProjectApproved    = "project.approved"
	RoutingMilestoneCompleted = "milestone.completed"
	RoutingMilestoneUnlocked  = "milestone.unlocked"
	RoutingMilestoneOverdue   = "milestone.overdue"
)

// 完成来源
const (
	CompletedByStudent  = "student"
	CompletedByApproval = "approval"
	CompletedBySystem   = "system"
)

// ProjectApprovedPayload 项目审核通过事件
type ProjectApprovedPayload struct {
	EventID    string    `json:"event_id"`
	ProjectID  string    `json:"project_id"`
	StudentID  string    `json:"student_id"`
	TeacherID  string    `json:"teacher_id"`
	ApprovedAt time.Time `json:"approved_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// MilestoneCompletedPayload 里程碑完成事件
type MilestoneCompletedPayload struct {
	EventID     string    `json:"event_id"`
	StudentID   string    `json:"student_id"`
	Index       int       `json:"index"`
	Title       string    `json:"title"`
	CompletedBy string    `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// MilestoneUnlockedPayload 下一个里程碑解锁事件
type MilestoneUnlockedPayload struct {
	EventID   string     `json:"event_id"`
	StudentID string     `json:"student_id"`
	Index     int        `json:"index"`
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
}

// MilestoneOverduePayload 里程碑逾期事件（仅通知，不修改状态）
type MilestoneOverduePayload struct {
	EventID    string    `json:"event_id"`
	StudentID  string    `json:"student_id"`
	Index      int       `json:"index"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"due_date"`
	DetectedAt time.Time `json:"detected_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
