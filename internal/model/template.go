package model

import "time"

type TemplateCategory string

const (
	CategoryWeb      TemplateCategory = "web"
	CategoryMobile   TemplateCategory = "mobile"
	CategoryResearch TemplateCategory = "research"
	CategoryML       TemplateCategory = "ml"
	CategoryIoT      TemplateCategory = "iot"
	CategoryGeneral  TemplateCategory = "general"
)

type Template struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Category    TemplateCategory    `json:"category"`
	Milestones  []TemplateMilestone `json:"milestones"`
	CreatedBy   string              `json:"created_by,omitempty"`
	IsDefault   bool                `json:"is_default"`
	IsPublic    bool                `json:"is_public"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
