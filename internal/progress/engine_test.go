package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/model"
	"projectportal/pkg/validate"
)

type fakeTemplates map[string]*model.Template

func (f fakeTemplates) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	t, ok := f[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return t, nil
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	templates := fakeTemplates{
		"web": {ID: "web", Name: "Web Development", Milestones: defs(7, 14, 14, 10, 5)},
		"empty": {ID: "empty", Name: "Empty"},
	}
	e := NewEngine(store, templates, zap.NewNop()).WithClock(func() time.Time { return testNow })
	return e, store
}

func ptr[T any](v T) *T { return &v }

func submitted(t *testing.T, e *Engine, studentID string) *model.Progress {
	t.Helper()
	p, err := e.EnsureStandardMilestones(context.Background(), studentID, "project-"+studentID)
	require.NoError(t, err)
	return p
}

func assertInvariant(t *testing.T, p *model.Progress) {
	t.Helper()
	require.NoError(t, CheckInvariant(p))
}

func TestSubmitProjectCreatesStandardMilestones(t *testing.T) {
	e, _ := newTestEngine(t)
	p := submitted(t, e, "s1")

	require.Len(t, p.Milestones, 5)
	assert.Equal(t, "project-s1", p.ProjectID)
	assert.False(t, p.Milestones[0].Locked)
	assert.Equal(t, model.MilestoneInProgress, p.Milestones[0].Status)
	for i := 1; i < 5; i++ {
		assert.True(t, p.Milestones[i].Locked)
		assert.Equal(t, model.MilestonePending, p.Milestones[i].Status)
	}
	assert.Zero(t, p.OverallProgress)
	assertInvariant(t, p)

	// resubmission keeps existing milestones
	again, err := e.EnsureStandardMilestones(context.Background(), "s1", "project-s1")
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestApplyTemplateProratesDueDates(t *testing.T) {
	e, _ := newTestEngine(t)
	deadline := testNow.Add(100 * 24 * time.Hour)

	p, err := e.ApplyTemplate(context.Background(), "s1", "web", &deadline)
	require.NoError(t, err)

	require.Len(t, p.Milestones, 5)
	assert.Equal(t, "web", p.TemplateID)
	assert.False(t, p.CustomTemplate)
	assert.Zero(t, p.OverallProgress)
	assert.WithinDuration(t, testNow.Add(14*24*time.Hour), *p.Milestones[0].DueDate, time.Second)
	assert.WithinDuration(t, deadline, *p.Milestones[4].DueDate, time.Second)
	assertInvariant(t, p)
}

func TestApplyTemplateOverwritesProgress(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")
	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Progress: ptr(100), Status: ptr(model.MilestoneCompleted)})
	require.NoError(t, err)

	p, err := e.ApplyTemplate(ctx, "s1", "web", nil)
	require.NoError(t, err)
	assert.Zero(t, p.OverallProgress)
	assert.Equal(t, model.MilestoneInProgress, p.Milestones[0].Status)
	assert.Nil(t, p.Milestones[0].DueDate)
	assert.Equal(t, "project-s1", p.ProjectID)
}

func TestApplyTemplateErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyTemplate(ctx, "s1", "missing", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.ApplyTemplate(ctx, "s1", "empty", nil)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	past := testNow.Add(-time.Hour)
	_, err = e.ApplyTemplate(ctx, "s1", "web", &past)
	var verr *validate.Error
	assert.ErrorAs(t, err, &verr)

	_, err = e.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestUpdateMilestoneNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.UpdateMilestone(ctx, "nobody", 0, MilestoneUpdate{Progress: ptr(10)})
	assert.ErrorIs(t, err, ErrProgressNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	submitted(t, e, "s1")
	for _, idx := range []int{-1, 5, 42} {
		_, err = e.UpdateMilestone(ctx, "s1", idx, MilestoneUpdate{Progress: ptr(10)})
		assert.ErrorIs(t, err, ErrInvalidIndex)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestUpdateMilestoneLocked(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	before := submitted(t, e, "s1")

	_, err := e.UpdateMilestone(ctx, "s1", 2, MilestoneUpdate{Progress: ptr(50)})
	assert.ErrorIs(t, err, ErrLocked)

	after, err := e.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateMilestoneValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")

	tests := []struct {
		name string
		upd  MilestoneUpdate
	}{
		{"progress above range", MilestoneUpdate{Progress: ptr(101)}},
		{"negative progress", MilestoneUpdate{Progress: ptr(-1)}},
		{"overdue not assignable", MilestoneUpdate{Status: ptr(model.MilestoneOverdue)}},
		{"unknown status", MilestoneUpdate{Status: ptr(model.MilestoneStatus("done"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.UpdateMilestone(ctx, "s1", 0, tt.upd)
			var verr *validate.Error
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestUpdateMilestoneRecomputesAggregate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")

	p, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Progress: ptr(42), Notes: ptr("draft sent")})
	require.NoError(t, err)
	assert.Equal(t, 8, p.OverallProgress) // round(42/5)
	assert.Equal(t, "draft sent", p.Milestones[0].Notes)
	assert.Equal(t, testNow, p.LastUpdated)
	assertInvariant(t, p)
}

func TestUpdateMilestoneApprovalGate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")
	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Progress: ptr(100), Status: ptr(model.MilestoneCompleted)})
	require.NoError(t, err)

	before, err := e.Get(ctx, "s1")
	require.NoError(t, err)

	_, err = e.UpdateMilestone(ctx, "s1", 1, MilestoneUpdate{
		Progress: ptr(100),
		Status:   ptr(model.MilestoneCompleted),
		FileURL:  ptr("https://files/lit-review.pdf"),
	})
	assert.ErrorIs(t, err, ErrApprovalRequired)

	after, err := e.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateMilestoneCannotReopen(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")
	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Status: ptr(model.MilestoneCompleted)})
	require.NoError(t, err)

	_, err = e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Status: ptr(model.MilestoneInProgress)})
	var verr *validate.Error
	assert.ErrorAs(t, err, &verr)
}

func TestApproveDocumentOnMilestoneTwo(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")

	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Progress: ptr(100), Status: ptr(model.MilestoneCompleted)})
	require.NoError(t, err)
	_, err = e.UpdateMilestone(ctx, "s1", 1, MilestoneUpdate{FileURL: ptr("https://files/review.pdf")})
	require.NoError(t, err)
	_, err = e.ApproveDocument(ctx, "s1", 1)
	require.NoError(t, err)
	_, err = e.UpdateMilestone(ctx, "s1", 2, MilestoneUpdate{Progress: ptr(60), FileURL: ptr("https://files/impl.zip")})
	require.NoError(t, err)

	p, err := e.ApproveDocument(ctx, "s1", 2)
	require.NoError(t, err)

	m2 := p.Milestones[2]
	assert.Equal(t, model.MilestoneCompleted, m2.Status)
	assert.Equal(t, 100, m2.Progress)
	assert.True(t, m2.ApprovedByTeacher)
	require.NotNil(t, m2.CompletedAt)
	assert.Equal(t, testNow, *m2.CompletedAt)

	assert.False(t, p.Milestones[3].Locked)
	assert.Equal(t, model.MilestoneInProgress, p.Milestones[3].Status)
	assert.True(t, p.Milestones[4].Locked)
	assert.Equal(t, model.MilestonePending, p.Milestones[4].Status)

	assert.Equal(t, 60, p.OverallProgress) // (100+100+100+0+0)/5
	assertInvariant(t, p)

	var keys []string
	for _, ev := range store.Events() {
		keys = append(keys, ev.RoutingKey)
	}
	assert.Equal(t, []string{
		mqcontract.RoutingMilestoneCompleted, mqcontract.RoutingMilestoneUnlocked,
		mqcontract.RoutingMilestoneCompleted, mqcontract.RoutingMilestoneUnlocked,
		mqcontract.RoutingMilestoneCompleted, mqcontract.RoutingMilestoneUnlocked,
	}, keys)
}

func TestApproveDocumentTwiceIsNoop(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")
	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{FileURL: ptr("https://files/proposal.pdf")})
	require.NoError(t, err)

	first, err := e.ApproveDocument(ctx, "s1", 0)
	require.NoError(t, err)
	eventsAfterFirst := len(store.Events())

	e.WithClock(func() time.Time { return testNow.Add(time.Hour) })
	second, err := e.ApproveDocument(ctx, "s1", 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.Events(), eventsAfterFirst)
}

func TestApproveDocumentErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApproveDocument(ctx, "s1", 0)
	assert.ErrorIs(t, err, ErrProgressNotFound)

	submitted(t, e, "s1")
	_, err = e.ApproveDocument(ctx, "s1", 7)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = e.ApproveDocument(ctx, "s1", 0)
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestUnlockPropagationAllPaths(t *testing.T) {
	ctx := context.Background()
	paths := map[string]func(e *Engine) (*model.Progress, error){
		"student completes": func(e *Engine) (*model.Progress, error) {
			return e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Status: ptr(model.MilestoneCompleted)})
		},
		"teacher approves": func(e *Engine) (*model.Progress, error) {
			if _, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{FileURL: ptr("https://files/p.pdf")}); err != nil {
				return nil, err
			}
			return e.ApproveDocument(ctx, "s1", 0)
		},
		"system auto-completes": func(e *Engine) (*model.Progress, error) {
			return e.AutoCompleteMilestone(ctx, "s1", 0)
		},
	}

	for name, complete := range paths {
		t.Run(name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			submitted(t, e, "s1")

			p, err := complete(e)
			require.NoError(t, err)

			assert.Equal(t, model.MilestoneCompleted, p.Milestones[0].Status)
			assert.NotNil(t, p.Milestones[0].CompletedAt)
			assert.False(t, p.Milestones[1].Locked)
			assert.Equal(t, model.MilestoneInProgress, p.Milestones[1].Status)
			for i := 2; i < 5; i++ {
				assert.True(t, p.Milestones[i].Locked)
				assert.Equal(t, model.MilestonePending, p.Milestones[i].Status)
			}
			assertInvariant(t, p)
		})
	}
}

func TestAutoCompleteIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")

	first, err := e.AutoCompleteMilestone(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 20, first.OverallProgress)
	n := len(store.Events())

	second, err := e.AutoCompleteMilestone(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, store.Events(), n)

	_, err = e.AutoCompleteMilestone(ctx, "s1", 3)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestLastMilestoneCompletionHasNoSuccessor(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")

	var p *model.Progress
	var err error
	for i := 0; i < 5; i++ {
		if i > 0 {
			_, err = e.UpdateMilestone(ctx, "s1", i, MilestoneUpdate{FileURL: ptr("https://files/doc.pdf")})
			require.NoError(t, err)
			p, err = e.ApproveDocument(ctx, "s1", i)
		} else {
			p, err = e.AutoCompleteMilestone(ctx, "s1", 0)
		}
		require.NoError(t, err)
		assertInvariant(t, p)
	}
	assert.Equal(t, 100, p.OverallProgress)
}

func TestReplaceMilestones(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ReplaceMilestones(ctx, "s1", []MilestoneInput{{Title: "Only"}})
	assert.ErrorIs(t, err, ErrProgressNotFound)

	submitted(t, e, "s1")
	_, err = e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{FileURL: ptr("https://files/p.pdf")})
	require.NoError(t, err)

	p, err := e.ReplaceMilestones(ctx, "s1", []MilestoneInput{
		{Title: "Proposal", Status: model.MilestoneCompleted, Progress: 100},
		{Title: "Prototype", EstimatedDays: 20},
		{Title: "Report", Status: model.MilestoneCompleted, Progress: 100},
	})
	require.NoError(t, err)

	assert.True(t, p.CustomTemplate)
	require.Len(t, p.Milestones, 3)
	assert.Equal(t, "https://files/p.pdf", p.Milestones[0].FileURL)
	assert.NotNil(t, p.Milestones[0].CompletedAt)
	assert.Equal(t, model.MilestoneInProgress, p.Milestones[1].Status)
	assert.False(t, p.Milestones[1].Locked)
	assert.True(t, p.Milestones[2].Locked)
	assert.Equal(t, model.MilestonePending, p.Milestones[2].Status)
	assertInvariant(t, p)

	_, err = e.ReplaceMilestones(ctx, "s1", nil)
	var verr *validate.Error
	assert.ErrorAs(t, err, &verr)
	_, err = e.ReplaceMilestones(ctx, "s1", []MilestoneInput{{Title: "  "}})
	assert.ErrorAs(t, err, &verr)
}

func TestConcurrentMutationsKeepInvariant(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	submitted(t, e, "s1")
	_, err := e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{FileURL: ptr("https://files/p.pdf")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_, _ = e.UpdateMilestone(ctx, "s1", 0, MilestoneUpdate{Progress: ptr(n % 100)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = e.ApproveDocument(ctx, "s1", 0)
		}()
		go func() {
			defer wg.Done()
			_, _ = e.AutoCompleteMilestone(ctx, "s1", 0)
		}()
	}
	wg.Wait()

	p, err := e.Get(ctx, "s1")
	require.NoError(t, err)
	assertInvariant(t, p)
	assert.Equal(t, model.MilestoneCompleted, p.Milestones[0].Status)

	completed := 0
	for _, ev := range store.Events() {
		if ev.RoutingKey == mqcontract.RoutingMilestoneCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestProgressViewDerivesOverdue(t *testing.T) {
	e, _ := newTestEngine(t)
	deadline := testNow.Add(10 * 24 * time.Hour)
	p, err := e.ApplyTemplate(context.Background(), "s1", "web", &deadline)
	require.NoError(t, err)

	later := testNow.Add(5 * 24 * time.Hour)
	view := p.View(later)
	assert.Equal(t, model.MilestoneOverdue, view.Milestones[0].Status)
	assert.Equal(t, model.MilestonePending, view.Milestones[4].Status)
	assert.Equal(t, model.MilestoneInProgress, p.Milestones[0].Status, "stored status is untouched")
}
