package model

import "time"

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectSubmitted ProjectStatus = "submitted"
	ProjectApproved  ProjectStatus = "approved"
	ProjectRejected  ProjectStatus = "rejected"
	ProjectCompleted ProjectStatus = "completed"
)

type Project struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	Title       string        `json:"title"`
	Abstract    string        `json:"abstract"`
	FileURL     string        `json:"file_url,omitempty"`
	Status      ProjectStatus `json:"status"`
	GuideID     string        `json:"guide_id,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Feedback    string        `json:"feedback,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectWithClash is a guide's view of a project with the title-clash flag.
type ProjectWithClash struct {
	Project
	TitleClash  bool    `json:"title_clash"`
	ClashWithID string  `json:"clash_with_id,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
}
