package mqhandler

import (
	"context"

	"projectportal/internal/model"
)

// Deduplicator guards handlers against redelivered messages.
type Deduplicator interface {
	AcquireOnce(ctx context.Context, handler string, key string) bool
	Release(ctx context.Context, handler string, key string)
}

type MilestoneCompleter interface {
	AutoCompleteMilestone(ctx context.Context, studentID string, index int) (*model.Progress, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, message, sourceID string) error
}

// Guides resolves a student's guide; nil when unallocated.
type Guides interface {
	ForStudent(ctx context.Context, studentID string) (*model.Allocation, error)
}
