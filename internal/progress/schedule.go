package progress

import (
	"fmt"
	"time"

	"projectportal/internal/model"
)

// DefaultEstimatedDays weights a milestone without an estimate.
const DefaultEstimatedDays = 7

// InitializeMilestones builds a fresh milestone list in template order: the
// first is unlocked and in progress, the rest locked and pending.
func InitializeMilestones(defs []model.TemplateMilestone) ([]model.Milestone, error) {
	if len(defs) == 0 {
		return nil, ErrInvalidTemplate
	}
	out := make([]model.Milestone, len(defs))
	for i, d := range defs {
		out[i] = model.Milestone{
			Title:         d.Title,
			Description:   d.Description,
			EstimatedDays: d.EstimatedDays,
			Status:        model.MilestonePending,
			Locked:        true,
			Order:         i,
		}
	}
	out[0].Locked = false
	out[0].Status = model.MilestoneInProgress
	return out, nil
}

// ProrateDueDates spreads the span from now to deadline across milestones in
// proportion to their estimated days. Due dates are cumulative and linear;
// weekends are not skipped.
func ProrateDueDates(ms []model.Milestone, now, deadline time.Time) {
	totalDays := 0
	for _, m := range ms {
		totalDays += weight(m)
	}
	if totalDays == 0 {
		return
	}
	perDay := float64(deadline.Sub(now)) / float64(totalDays)

	elapsed := 0
	for i := range ms {
		elapsed += weight(ms[i])
		due := now.Add(time.Duration(perDay * float64(elapsed)))
		if i == len(ms)-1 {
			due = deadline
		}
		ms[i].DueDate = &due
	}
}

func weight(m model.Milestone) int {
	if m.EstimatedDays > 0 {
		return m.EstimatedDays
	}
	return DefaultEstimatedDays
}

var standardMilestones = []model.TemplateMilestone{
	{Title: "Project Proposal", Description: "Submit initial project proposal"},
	{Title: "Literature Review", Description: "Complete literature review and research"},
	{Title: "Implementation", Description: "Develop the project"},
	{Title: "Testing & Documentation", Description: "Test and document the project"},
	{Title: "Final Submission", Description: "Submit final project with presentation"},
}

// StandardMilestones returns the five milestones created on first project submission.
func StandardMilestones() []model.Milestone {
	ms, _ := InitializeMilestones(standardMilestones)
	return ms
}

// CheckInvariant verifies that the unlocked milestones form a prefix starting
// at index 0 and that each unlocked milestone after the first follows a
// completed one.
func CheckInvariant(p *model.Progress) error {
	if p == nil || len(p.Milestones) == 0 {
		return nil
	}
	if p.Milestones[0].Locked {
		return fmt.Errorf("milestone 0 is locked")
	}
	seenLocked := false
	for i := 1; i < len(p.Milestones); i++ {
		m := p.Milestones[i]
		if m.Locked {
			seenLocked = true
			continue
		}
		if seenLocked {
			return fmt.Errorf("milestone %d is unlocked after a locked milestone", i)
		}
		if p.Milestones[i-1].Status != model.MilestoneCompleted {
			return fmt.Errorf("milestone %d is unlocked but milestone %d is %s", i, i-1, p.Milestones[i-1].Status)
		}
	}
	if want := model.AverageProgress(p.Milestones); p.OverallProgress != want {
		return fmt.Errorf("overall progress %d, want %d", p.OverallProgress, want)
	}
	return nil
}

// relock re-derives locks after an arbitrary edit: the completed prefix and
// the first unfinished milestone are unlocked, everything after is locked
// and cannot stay completed.
func relock(ms []model.Milestone) {
	open := true
	for i := range ms {
		ms[i].Order = i
		if open {
			ms[i].Locked = false
			if ms[i].Status == model.MilestoneCompleted {
				continue
			}
			if ms[i].Status == model.MilestonePending || ms[i].Status == model.MilestoneOverdue || ms[i].Status == "" {
				ms[i].Status = model.MilestoneInProgress
			}
			open = false
			continue
		}
		ms[i].Locked = true
		if ms[i].Status != model.MilestonePending {
			ms[i].Status = model.MilestonePending
			ms[i].CompletedAt = nil
		}
	}
}
