package model

import "time"

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	// MilestoneOverdue is only ever derived on read, never stored.
	MilestoneOverdue MilestoneStatus = "overdue"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneCompleted, MilestoneOverdue:
		return true
	}
	return false
}

type Milestone struct {
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	EstimatedDays     int             `json:"estimated_days,omitempty"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	Status            MilestoneStatus `json:"status"`
	Progress          int             `json:"progress"`
	Locked            bool            `json:"locked"`
	FileURL           string          `json:"file_url,omitempty"`
	ApprovedByTeacher bool            `json:"approved_by_teacher"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Order             int             `json:"order"`
}

// IsOverdue reports whether the due date has passed on an unfinished milestone.
func (m Milestone) IsOverdue(now time.Time) bool {
	return m.DueDate != nil && now.After(*m.DueDate) && m.Status != MilestoneCompleted
}

// EffectiveStatus is the status a reader should see at now.
func (m Milestone) EffectiveStatus(now time.Time) MilestoneStatus {
	if m.IsOverdue(now) {
		return MilestoneOverdue
	}
	return m.Status
}

// TemplateMilestone is a milestone definition inside a template.
type TemplateMilestone struct {
	Title         string `json:"title" validate:"notblank,max=200"`
	Description   string `json:"description,omitempty" validate:"max=2000"`
	EstimatedDays int    `json:"estimated_days,omitempty" validate:"min=0,max=3650"`
	Order         int    `json:"order"`
}
