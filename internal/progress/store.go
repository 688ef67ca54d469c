package progress

import (
	"context"
	"errors"
	"sort"
	"sync"

	"projectportal/internal/model"
)

// MutateFunc edits p in place and returns the events to persist with it.
// exists is false when the student has no document yet; p is then a fresh
// document carrying only the student id. Returning an error aborts the write.
type MutateFunc func(p *model.Progress, exists bool) ([]model.Event, error)

// Store persists progress documents with an atomic read-modify-write per student.
type Store interface {
	Get(ctx context.Context, studentID string) (*model.Progress, error)
	Update(ctx context.Context, studentID string, fn MutateFunc) (*model.Progress, error)
	ListByStudents(ctx context.Context, studentIDs []string) ([]*model.Progress, error)
	// ListOpen returns documents that still have unfinished milestones.
	ListOpen(ctx context.Context) ([]*model.Progress, error)
}

// TemplateSource resolves milestone templates for ApplyTemplate.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
}

// MemoryStore keeps documents in process. Mutations run on a clone that is
// swapped in only when fn succeeds.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*model.Progress
	events []model.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*model.Progress)}
}

func (s *MemoryStore) Get(_ context.Context, studentID string) (*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.docs[studentID]
	if !ok {
		return nil, ErrProgressNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, studentID string, fn MutateFunc) (*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[studentID]
	work := &model.Progress{StudentID: studentID, Milestones: []model.Milestone{}}
	if exists {
		work = current.Clone()
	}

	events, err := fn(work, exists)
	if errors.Is(err, ErrUnchanged) {
		if !exists {
			return nil, ErrProgressNotFound
		}
		return current.Clone(), nil
	}
	if err != nil {
		return nil, err
	}

	s.docs[studentID] = work
	s.events = append(s.events, events...)
	return work.Clone(), nil
}

func (s *MemoryStore) ListByStudents(_ context.Context, studentIDs []string) ([]*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Progress, 0, len(studentIDs))
	for _, id := range studentIDs {
		if p, ok := s.docs[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Progress
	for _, p := range s.docs {
		for _, m := range p.Milestones {
			if m.Status != model.MilestoneCompleted {
				out = append(out, p.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// Events returns every event recorded so far.
func (s *MemoryStore) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}
