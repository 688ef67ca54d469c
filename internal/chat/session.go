package chat

import (
	"sync"

	"github.com/google/uuid"

	"projectportal/internal/model"
	"projectportal/pkg/metrics"
)

const DefaultSendBuffer = 64

// Session is one live connection. Frames queue in a bounded buffer drained
// by a single writer; a full buffer drops the frame instead of blocking
// the sender.
type Session struct {
	ID        string
	Principal model.Principal

	rooms     []string
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(p model.Principal, rooms []string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{
		ID:        uuid.NewString(),
		Principal: p,
		rooms:     rooms,
		out:       make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

func (s *Session) Rooms() []string {
	return append([]string(nil), s.rooms...)
}

func (s *Session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- payload:
		return true
	default:
		metrics.ChatDroppedFrames.Inc()
		return false
	}
}

// writeLoop sends queued frames with write until the session closes or a
// write fails.
func (s *Session) writeLoop(write func([]byte) error) {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.out:
			if err := write(payload); err != nil {
				s.Close()
				return
			}
		}
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}
