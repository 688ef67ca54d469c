package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/model"
	"projectportal/pkg/trace"
)

const overdueSweepHandler = "overdue_sweep"

type OpenProgressLister interface {
	ListOpen(ctx context.Context) ([]*model.Progress, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Deduplicator interface {
	AcquireOnce(ctx context.Context, handler string, key string) bool
	Release(ctx context.Context, handler string, key string)
}

// OverdueSweeper announces milestones whose due date has passed. It never
// writes progress: overdue is derived on read. Each (student, milestone,
// due date) is announced once.
type OverdueSweeper struct {
	store     OpenProgressLister
	publisher EventPublisher
	dedup     Deduplicator
	logger    *zap.Logger
	now       func() time.Time
}

func NewOverdueSweeper(store OpenProgressLister, publisher EventPublisher, dedup Deduplicator, logger *zap.Logger) *OverdueSweeper {
	return &OverdueSweeper{
		store:     store,
		publisher: publisher,
		dedup:     dedup,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *OverdueSweeper) WithClock(now func() time.Time) *OverdueSweeper {
	s.now = now
	return s
}

// Sweep publishes milestone.overdue for every newly overdue milestone and
// returns how many were published.
func (s *OverdueSweeper) Sweep(ctx context.Context) (int, error) {
	docs, err := s.store.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open progress: %w", err)
	}

	now := s.now()
	published := 0
	for _, p := range docs {
		for i, m := range p.Milestones {
			if !m.IsOverdue(now) {
				continue
			}
			key := fmt.Sprintf("%s:%d:%d", p.StudentID, i, m.DueDate.Unix())
			if !s.dedup.AcquireOnce(ctx, overdueSweepHandler, key) {
				continue
			}

			eventID := uuid.NewString()
			payload := mqcontract.MilestoneOverduePayload{
				EventID:    eventID,
				StudentID:  p.StudentID,
				Index:      i,
				Title:      m.Title,
				DueDate:    *m.DueDate,
				DetectedAt: now,
				TraceID:    trace.FromContext(ctx),
			}
			if err := s.publisher.Publish(ctx, mqcontract.RoutingMilestoneOverdue, payload); err != nil {
				s.dedup.Release(ctx, overdueSweepHandler, key)
				s.logger.Warn("Failed to publish overdue event",
					zap.String("student_id", p.StudentID),
					zap.Int("index", i),
					zap.Error(err),
				)
				continue
			}
			published++
		}
	}
	return published, nil
}

// Schedule registers the sweep on c. Overlapping runs are skipped.
func (s *OverdueSweeper) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	job := cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(trace.WithContext(context.Background(), trace.GenerateTraceID()), timeout)
		defer cancel()

		start := time.Now()
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("Overdue sweep failed", zap.Error(err))
			return
		}
		s.logger.Info("Overdue sweep finished",
			zap.Int("published", n),
			zap.Duration("took", time.Since(start)),
		)
	})
	return c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job))
}
