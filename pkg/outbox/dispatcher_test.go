package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectportal/pkg/trace"
)

type fakeStore struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*Event
	order   []uuid.UUID
	retries map[uuid.UUID]int
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{events: map[uuid.UUID]*Event{}, retries: map[uuid.UUID]int{}}
	for _, e := range events {
		s.events[e.ID] = e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, id := range s.order {
		if e := s.events[id]; e.Status == StatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusSent
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id uuid.UUID, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[id]++
	if s.retries[id] >= maxRetries {
		s.events[id].Status = StatusFailed
	}
	return nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *fakeStore) GetFailedEvents(_ context.Context, _ int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, id := range s.order {
		if e := s.events[id]; e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out, nil
}

type published struct {
	routingKey, messageID, traceID string
	body                           []byte
}

type fakePublisher struct {
	fail map[string]bool
	sent []published
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error {
	if p.fail[routingKey] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{routingKey, messageID, trace.FromContext(ctx), body})
	return nil
}

func newEvent(routingKey string, payload any) *Event {
	body, _ := json.Marshal(payload)
	return &Event{ID: uuid.New(), RoutingKey: routingKey, Payload: body, Status: StatusPending}
}

func TestDispatcherPublishesPendingInOrder(t *testing.T) {
	first := newEvent("milestone.completed", map[string]any{"student_id": "s1", "trace_id": "t-1"})
	second := newEvent("milestone.unlocked", map[string]any{"student_id": "s1"})
	store := newFakeStore(first, second)
	pub := &fakePublisher{}

	d := NewDispatcher(store, pub, zap.NewNop())
	sent := d.ProcessPending(context.Background())

	assert.Equal(t, 2, sent)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "milestone.completed", pub.sent[0].routingKey)
	assert.Equal(t, first.ID.String(), pub.sent[0].messageID)
	assert.Equal(t, "t-1", pub.sent[0].traceID)
	assert.JSONEq(t, string(first.Payload), string(pub.sent[0].body))
	assert.Equal(t, StatusSent, first.Status)
	assert.Equal(t, StatusSent, second.Status)
}

func TestDispatcherMarksFailuresUntilLimit(t *testing.T) {
	ev := newEvent("project.approved", map[string]any{"student_id": "s1"})
	store := newFakeStore(ev)
	pub := &fakePublisher{fail: map[string]bool{"project.approved": true}}

	d := NewDispatcher(store, pub, zap.NewNop()).WithMaxRetries(2)
	assert.Equal(t, 0, d.ProcessPending(context.Background()))
	assert.Equal(t, StatusPending, ev.Status)
	assert.Equal(t, 0, d.ProcessPending(context.Background()))
	assert.Equal(t, StatusFailed, ev.Status)

	pub.fail = nil
	replay := NewReplayService(store, pub, zap.NewNop())
	n, err := replay.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, ev.Status)
}

func TestReplayUnknownEvent(t *testing.T) {
	replay := NewReplayService(newFakeStore(), &fakePublisher{}, zap.NewNop())
	err := replay.ReplayEvent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}
