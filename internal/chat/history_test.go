package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

type fakeAllocations struct {
	byStudent map[string]model.Allocation
}

func (f fakeAllocations) ForStudent(_ context.Context, studentID string) (*model.Allocation, error) {
	a, ok := f.byStudent[studentID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f fakeAllocations) ForTeacher(_ context.Context, teacherID string) ([]model.Allocation, error) {
	var out []model.Allocation
	for _, a := range f.byStudent {
		if a.TeacherID == teacherID {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestHistoryDirectReturnsNewestOldestFirst(t *testing.T) {
	store := NewMemoryStore()
	r := NewRouter(store, &recordingFanout{}, zap.NewNop())
	for i := 0; i < 5; i++ {
		_, err := r.Send(context.Background(), student, SendIntent{ToUserID: "t1", Text: fmt.Sprintf("m%d", i), Mode: ModeDirect})
		require.NoError(t, err)
	}

	h := NewHistory(store, fakeAllocations{}, 3)
	msgs, err := h.Direct(context.Background(), "t1", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Text)
	assert.Equal(t, "m4", msgs[2].Text)

	_, err = h.Direct(context.Background(), "t1", "t1")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestHistoryBroadcastResolvesRoomByRole(t *testing.T) {
	store := NewMemoryStore()
	r := NewRouter(store, &recordingFanout{}, zap.NewNop())
	ctx := context.Background()
	_, err := r.Send(ctx, teacher, SendIntent{Text: "class note", Mode: ModeBroadcast})
	require.NoError(t, err)
	_, err = r.Send(ctx, admin, SendIntent{Text: "staff note", Mode: ModeBroadcastTeachers})
	require.NoError(t, err)

	h := NewHistory(store, fakeAllocations{byStudent: map[string]model.Allocation{
		"s1": {StudentID: "s1", TeacherID: "t1"},
	}}, 0)

	tests := []struct {
		name   string
		p      model.Principal
		source string
		want   []string
	}{
		{"allocated student", student, "", []string{"class note"}},
		{"unallocated student", model.Principal{UserID: "s2", Role: rbac.RoleStudent}, "", nil},
		{"teacher own room", teacher, "", []string{"class note"}},
		{"teacher admin room", teacher, BroadcastSourceAdmin, []string{"staff note"}},
		{"admin", admin, "", []string{"staff note"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := h.Broadcast(ctx, tt.p, tt.source)
			require.NoError(t, err)
			var texts []string
			for _, m := range msgs {
				texts = append(texts, m.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}
