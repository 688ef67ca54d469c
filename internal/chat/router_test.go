package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

type delivery struct {
	rooms []string
	msg   model.ChatMessage
}

type recordingFanout struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

func (f *recordingFanout) Deliver(_ context.Context, rooms []string, frame Frame) error {
	var msg model.ChatMessage
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{rooms: rooms, msg: msg})
	return f.err
}

type failingStore struct{ *MemoryStore }

func (*failingStore) Save(context.Context, *model.ChatMessage) error {
	return errors.New("db down")
}

var (
	student = model.Principal{UserID: "s1", Role: rbac.RoleStudent}
	teacher = model.Principal{UserID: "t1", Role: rbac.RoleTeacher}
	admin   = model.Principal{UserID: "a1", Role: rbac.RoleAdmin}
)

func TestRouterSendRejections(t *testing.T) {
	tests := []struct {
		name   string
		sender model.Principal
		in     SendIntent
		want   error
	}{
		{"blank text", student, SendIntent{ToUserID: "t1", Text: "   ", Mode: ModeDirect}, ErrInvalidPayload},
		{"missing recipient", student, SendIntent{Text: "hi", Mode: ModeDirect}, ErrInvalidPayload},
		{"self message", student, SendIntent{ToUserID: "s1", Text: "hi", Mode: ModeDirect}, ErrInvalidPayload},
		{"unknown mode", student, SendIntent{Text: "hi", Mode: "shout"}, ErrInvalidPayload},
		{"too long", teacher, SendIntent{Text: strings.Repeat("x", 4001), Mode: ModeBroadcast}, ErrInvalidPayload},
		{"student broadcast", student, SendIntent{Text: "hi", Mode: ModeBroadcast}, ErrModeNotAllowed},
		{"teacher to teachers", teacher, SendIntent{Text: "hi", Mode: ModeBroadcastTeachers}, ErrModeNotAllowed},
		{"admin broadcast", admin, SendIntent{Text: "hi", Mode: ModeBroadcast}, ErrModeNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			fanout := &recordingFanout{}
			r := NewRouter(store, fanout, zap.NewNop())

			msg, err := r.Send(context.Background(), tt.sender, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, msg)
			assert.Empty(t, fanout.deliveries)
		})
	}
}

func TestRouterSendPersistsThenFansOut(t *testing.T) {
	store := NewMemoryStore()
	fanout := &recordingFanout{}
	r := NewRouter(store, fanout, zap.NewNop())

	msg, err := r.Send(context.Background(), student, SendIntent{ToUserID: "t1", Text: "  hello  ", Mode: ModeDirect})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, model.RoomDirect, msg.RoomType)
	assert.Equal(t, "direct:s1:t1", msg.RoomID)
	assert.Equal(t, "t1", msg.ReceiverID)
	assert.NotEmpty(t, msg.ID)
	assert.Empty(t, msg.ReadBy)

	stored, err := store.ListRoom(context.Background(), model.RoomDirect, "direct:s1:t1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)

	require.Len(t, fanout.deliveries, 1)
	assert.Equal(t, []string{"user:t1", "user:s1"}, fanout.deliveries[0].rooms)
	assert.Equal(t, msg.ID, fanout.deliveries[0].msg.ID)
}

func TestRouterSendStoreFailureSkipsFanout(t *testing.T) {
	fanout := &recordingFanout{}
	r := NewRouter(&failingStore{NewMemoryStore()}, fanout, zap.NewNop())

	_, err := r.Send(context.Background(), teacher, SendIntent{Text: "hi", Mode: ModeBroadcast})
	require.Error(t, err)
	assert.Equal(t, "internal", RejectCode(err))
	assert.Empty(t, fanout.deliveries)
}

func TestRouterSendFanoutFailureStillAccepts(t *testing.T) {
	fanout := &recordingFanout{err: errors.New("redis gone")}
	r := NewRouter(NewMemoryStore(), fanout, zap.NewNop())

	msg, err := r.Send(context.Background(), teacher, SendIntent{Text: "hi", Mode: ModeBroadcast})
	require.NoError(t, err)
	assert.Equal(t, "broadcast:t1", msg.RoomID)
}

func TestRouterEmissionOrderMatchesPersistence(t *testing.T) {
	store := NewMemoryStore()
	fanout := &recordingFanout{}
	r := NewRouter(store, fanout, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Send(context.Background(), teacher, SendIntent{Text: fmt.Sprintf("m%d", i), Mode: ModeBroadcast})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := store.ListRoom(context.Background(), model.RoomBroadcast, "broadcast:t1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 50)
	require.Len(t, fanout.deliveries, 50)
	for i := range stored {
		assert.Equal(t, stored[i].ID, fanout.deliveries[i].msg.ID)
	}
}

func TestRejectCode(t *testing.T) {
	assert.Equal(t, "invalid_payload", RejectCode(fmt.Errorf("%w: x", ErrInvalidPayload)))
	assert.Equal(t, "mode_not_allowed", RejectCode(ErrModeNotAllowed))
	assert.Equal(t, "internal", RejectCode(errors.New("boom")))
}
