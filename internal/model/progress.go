package model

import (
	"math"
	"time"
)

// Progress is a student's milestone document.
type Progress struct {
	StudentID       string      `json:"student_id"`
	ProjectID       string      `json:"project_id,omitempty"`
	TemplateID      string      `json:"template_id,omitempty"`
	Milestones      []Milestone `json:"milestones"`
	OverallProgress int         `json:"overall_progress"`
	CustomTemplate  bool        `json:"custom_template"`
	LastUpdated     time.Time   `json:"last_updated"`
}

// Recompute refreshes the aggregate and stamps LastUpdated.
func (p *Progress) Recompute(now time.Time) {
	p.OverallProgress = AverageProgress(p.Milestones)
	p.LastUpdated = now
}

// AverageProgress is round(mean(progress)), 0 for no milestones.
func AverageProgress(ms []Milestone) int {
	if len(ms) == 0 {
		return 0
	}
	total := 0
	for _, m := range ms {
		total += m.Progress
	}
	return int(math.Round(float64(total) / float64(len(ms))))
}

// Clone returns a deep copy.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	out := *p
	out.Milestones = make([]Milestone, len(p.Milestones))
	for i, m := range p.Milestones {
		if m.DueDate != nil {
			d := *m.DueDate
			m.DueDate = &d
		}
		if m.CompletedAt != nil {
			c := *m.CompletedAt
			m.CompletedAt = &c
		}
		out.Milestones[i] = m
	}
	return &out
}

// View returns a copy whose milestones carry their effective status at now.
func (p *Progress) View(now time.Time) *Progress {
	out := p.Clone()
	for i := range out.Milestones {
		out.Milestones[i].Status = out.Milestones[i].EffectiveStatus(now)
	}
	return out
}
