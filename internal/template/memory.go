package template

import (
	"context"
	"errors"
	"sort"
	"sync"

	"projectportal/internal/model"
)

// MemoryRepository keeps templates in process.
type MemoryRepository struct {
	mu        sync.Mutex
	templates map[string]model.Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[string]model.Template)}
}

func (r *MemoryRepository) lock() func() {
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *MemoryRepository) ListVisible(_ context.Context, userID string) ([]model.Template, error) {
	defer r.lock()()
	var out []model.Template
	for _, t := range r.templates {
		if t.IsDefault || t.IsPublic || t.CreatedBy == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Template, error) {
	defer r.lock()()
	t, ok := r.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) Create(_ context.Context, t *model.Template) error {
	defer r.lock()()
	if _, ok := r.templates[t.ID]; ok {
		return errors.New("template already exists")
	}
	r.templates[t.ID] = *t
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, userID string, t *model.Template) error {
	defer r.lock()()
	cur, ok := r.templates[t.ID]
	if !ok || cur.IsDefault || cur.CreatedBy != userID {
		return ErrNotFound
	}
	r.templates[t.ID] = *t
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, userID, id string) error {
	defer r.lock()()
	cur, ok := r.templates[id]
	if !ok || cur.IsDefault || cur.CreatedBy != userID {
		return ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	defer r.lock()()
	return len(r.templates), nil
}
