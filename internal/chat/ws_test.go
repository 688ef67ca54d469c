package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"projectportal/internal/model"
)

type tokenAuth map[string]model.Principal

func (a tokenAuth) Authenticate(token string) (model.Principal, error) {
	p, ok := a[token]
	if !ok {
		return model.Principal{}, errors.New("bad token")
	}
	return p, nil
}

type wsFixture struct {
	url   string
	hub   *Hub
	store *MemoryStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(logger)
	store := NewMemoryStore()
	router := NewRouter(store, NewLocalFanout(hub), logger)
	allocations := fakeAllocations{byStudent: map[string]model.Allocation{
		"s1": {StudentID: "s1", TeacherID: "t1"},
	}}
	auth := tokenAuth{"student": student, "teacher": teacher, "admin": admin}

	srv := httptest.NewServer(NewWSHandler(router, hub, allocations, auth, 8, logger))
	t.Cleanup(srv.Close)
	return &wsFixture{url: srv.URL, hub: hub, store: store}
}

func (f *wsFixture) dial(t *testing.T, token string, room string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.url, "http") + "/ws?token=" + token
	conn, err := websocket.Dial(wsURL, "", f.url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.hub.Members(room) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := NewFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(conn).Encode(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	return frame
}

func TestWSDirectMessageReachesBothParties(t *testing.T) {
	f := newWSFixture(t)
	teacherConn := f.dial(t, "teacher", "user:t1")
	studentConn := f.dial(t, "student", "user:s1")

	sendFrame(t, studentConn, EventSend, SendIntent{ToUserID: "t1", Text: "hello", Mode: ModeDirect})

	for _, conn := range []*websocket.Conn{teacherConn, studentConn} {
		frame := readFrame(t, conn)
		require.Equal(t, EventMessage, frame.Event)
		var msg model.ChatMessage
		require.NoError(t, json.Unmarshal(frame.Data, &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "direct:s1:t1", msg.RoomID)
		assert.Equal(t, "s1", msg.SenderID)
	}

	stored, err := f.store.ListRoom(context.Background(), model.RoomDirect, "direct:s1:t1", 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWSBroadcastReachesAllocatedStudents(t *testing.T) {
	f := newWSFixture(t)
	studentConn := f.dial(t, "student", "broadcast:t1")
	teacherConn := f.dial(t, "teacher", "user:t1")

	sendFrame(t, teacherConn, EventSend, SendIntent{Text: "deadline friday", Mode: ModeBroadcast})

	for _, conn := range []*websocket.Conn{studentConn, teacherConn} {
		frame := readFrame(t, conn)
		require.Equal(t, EventMessage, frame.Event)
		var msg model.ChatMessage
		require.NoError(t, json.Unmarshal(frame.Data, &msg))
		assert.Equal(t, "broadcast:t1", msg.RoomID)
	}
}

func TestWSRejectsOnlyTheSender(t *testing.T) {
	f := newWSFixture(t)
	studentConn := f.dial(t, "student", "user:s1")

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"mode not allowed", `{"event":"chat:send","data":{"text":"hi","mode":"broadcast"}}`, "mode_not_allowed"},
		{"blank text", `{"event":"chat:send","data":{"toUserId":"t1","text":" ","mode":"direct"}}`, "invalid_payload"},
		{"malformed frame", `{"event":`, "invalid_payload"},
		{"unknown event", `{"event":"chat:typing","data":{}}`, "unknown_event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, websocket.Message.Send(studentConn, tt.raw))
			frame := readFrame(t, studentConn)
			require.Equal(t, EventRejected, frame.Event)
			var rej Rejection
			require.NoError(t, json.Unmarshal(frame.Data, &rej))
			assert.Equal(t, tt.code, rej.Code)
		})
	}
}

func TestWSUnauthorized(t *testing.T) {
	f := newWSFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.url, "http") + "/ws?token=nope"
	_, err := websocket.Dial(wsURL, "", f.url)
	assert.Error(t, err)
}
