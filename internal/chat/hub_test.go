package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHubDeliverDedupesAcrossRooms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := NewSession(teacher, []string{"user:t1", "broadcast:t1"}, 4)
	hub.Join(s)

	n := hub.Deliver([]string{"user:t1", "broadcast:t1"}, []byte("x"))
	assert.Equal(t, 1, n)
	assert.Len(t, s.out, 1)

	hub.Leave(s)
	assert.Equal(t, 0, hub.Members("user:t1"))
	assert.Equal(t, 0, hub.Deliver([]string{"user:t1"}, []byte("y")))
}

func TestSessionDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := NewSession(student, []string{"user:s1"}, 2)
	fast := NewSession(teacher, []string{"user:s1"}, 8)
	hub.Join(slow)
	hub.Join(fast)

	for i := 0; i < 5; i++ {
		hub.Deliver([]string{"user:s1"}, []byte("x"))
	}
	assert.Len(t, slow.out, 2)
	assert.Len(t, fast.out, 5)
}

func TestSessionClosedRejectsFrames(t *testing.T) {
	s := NewSession(student, nil, 2)
	s.Close()
	s.Close()
	assert.False(t, s.enqueue([]byte("x")))
}
