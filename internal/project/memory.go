package project

import (
	"context"
	"sort"
	"sync"

	"projectportal/internal/model"
)

// MemoryRepository keeps projects in process and records emitted events.
type MemoryRepository struct {
	mu        sync.Mutex
	byStudent map[string]model.Project
	events    []model.Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byStudent: make(map[string]model.Project)}
}

func (r *MemoryRepository) GetByStudent(_ context.Context, studentID string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byStudent[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStudent[p.StudentID] = *p
	return nil
}

func (r *MemoryRepository) SaveWithEvents(_ context.Context, p *model.Project, events []model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byStudent[p.StudentID]; !ok {
		return ErrNotFound
	}
	r.byStudent[p.StudentID] = *p
	r.events = append(r.events, events...)
	return nil
}

func (r *MemoryRepository) ListByGuide(_ context.Context, guideID string) ([]model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Project
	for _, p := range r.byStudent {
		if p.GuideID == guideID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepository) ListTitles(_ context.Context) ([]TitleRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TitleRef, 0, len(r.byStudent))
	for _, p := range r.byStudent {
		out = append(out, TitleRef{ID: p.ID, Title: p.Title})
	}
	return out, nil
}

func (r *MemoryRepository) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}
