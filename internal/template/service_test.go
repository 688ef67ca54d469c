package template

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/internal/progress"
	"projectportal/pkg/validate"
)

func validInput(name string) Input {
	return Input{
		Name:     name,
		Category: model.CategoryIoT,
		Milestones: []model.TemplateMilestone{
			{Title: "Build", EstimatedDays: 10, Order: 1},
			{Title: "Design", EstimatedDays: 5, Order: 0},
		},
	}
}

func TestSeedDefaultsOnlyOnce(t *testing.T) {
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	ctx := context.Background()

	n, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	list, err := svc.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 5)
	for _, tpl := range list {
		assert.True(t, tpl.IsDefault)
		assert.Len(t, tpl.Milestones, 5)
	}
}

func TestCreateValidatesAndOrders(t *testing.T) {
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"blank name", Input{Name: " ", Milestones: validInput("x").Milestones}, "name"},
		{"no milestones", Input{Name: "x"}, "milestones"},
		{"bad category", Input{Name: "x", Category: "art", Milestones: validInput("x").Milestones}, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "t1", tt.in)
			var verr *validate.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.FieldMap(), tt.field)
		})
	}

	created, err := svc.Create(ctx, "t1", Input{Name: "Plain", Milestones: validInput("x").Milestones})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryGeneral, created.Category)
	assert.Equal(t, "Design", created.Milestones[0].Title)
	assert.False(t, created.IsDefault)
	assert.Equal(t, "t1", created.CreatedBy)
}

func TestOwnershipRules(t *testing.T) {
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	ctx := context.Background()
	_, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)

	mine, err := svc.Create(ctx, "t1", validInput("Mine"))
	require.NoError(t, err)

	t.Run("private templates are hidden from others", func(t *testing.T) {
		list, err := svc.List(ctx, "t2")
		require.NoError(t, err)
		assert.Len(t, list, 5)
	})

	t.Run("others cannot update or delete", func(t *testing.T) {
		_, err := svc.Update(ctx, "t2", mine.ID, validInput("Stolen"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, "t2", mine.ID), ErrNotFound)
	})

	t.Run("defaults are read only", func(t *testing.T) {
		list, err := svc.List(ctx, "t1")
		require.NoError(t, err)
		var def model.Template
		for _, tpl := range list {
			if tpl.IsDefault {
				def = tpl
				break
			}
		}
		require.NotEmpty(t, def.ID)
		_, err = svc.Update(ctx, "t1", def.ID, validInput("x"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, "t1", def.ID), ErrNotFound)
	})

	t.Run("owner updates and deletes", func(t *testing.T) {
		updated, err := svc.Update(ctx, "t1", mine.ID, validInput("Renamed"))
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		require.NoError(t, svc.Delete(ctx, "t1", mine.ID))
		_, err = svc.GetTemplate(ctx, mine.ID)
		assert.ErrorIs(t, err, progress.ErrNotFound)
	})
}

func TestApplySeededWebTemplateProratesDueDates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	_, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)

	list, err := svc.List(ctx, "")
	require.NoError(t, err)
	var web model.Template
	for _, tpl := range list {
		if tpl.Category == model.CategoryWeb {
			web = tpl
		}
	}
	require.NotEmpty(t, web.ID)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(100 * 24 * time.Hour)
	engine := progress.NewEngine(progress.NewMemoryStore(), svc, zap.NewNop()).WithClock(func() time.Time { return now })

	p, err := engine.ApplyTemplate(ctx, "s1", web.ID, &deadline)
	require.NoError(t, err)
	require.Len(t, p.Milestones, 5)
	assert.Equal(t, now.Add(14*24*time.Hour), *p.Milestones[0].DueDate)
	assert.Equal(t, deadline, *p.Milestones[4].DueDate)
	assert.Equal(t, web.ID, p.TemplateID)
}
