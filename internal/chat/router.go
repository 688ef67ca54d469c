package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectportal/internal/model"
	"projectportal/pkg/logger"
	"projectportal/pkg/metrics"
	"projectportal/pkg/util"
	"projectportal/pkg/validate"
)

var (
	ErrInvalidPayload = errors.New("invalid chat payload")
	ErrModeNotAllowed = errors.New("mode not allowed for role")
)

// MessageStore persists chat messages. ListRoom returns the newest limit
// messages of a room, oldest first.
type MessageStore interface {
	Save(ctx context.Context, msg *model.ChatMessage) error
	ListRoom(ctx context.Context, roomType model.RoomType, roomID string, limit int) ([]model.ChatMessage, error)
}

// Allocations resolves the guide relationships used for room membership.
type Allocations interface {
	ForStudent(ctx context.Context, studentID string) (*model.Allocation, error)
	ForTeacher(ctx context.Context, teacherID string) ([]model.Allocation, error)
}

// Fanout delivers a frame to every live session in the given rooms.
type Fanout interface {
	Deliver(ctx context.Context, rooms []string, frame Frame) error
}

// Router runs the validate, authorize, persist, fan-out pipeline. Sends to
// the same room are serialized so emission order equals persistence order.
type Router struct {
	store  MessageStore
	fanout Fanout
	locks  *util.KeyedMutex
	logger *zap.Logger
	now    func() time.Time
}

func NewRouter(store MessageStore, fanout Fanout, logger *zap.Logger) *Router {
	return &Router{
		store:  store,
		fanout: fanout,
		locks:  util.NewKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

// ValidateIntent checks the shape of an intent from sender.
func ValidateIntent(sender model.Principal, in SendIntent) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if in.Mode == ModeDirect && in.ToUserID == sender.UserID {
		return fmt.Errorf("%w: cannot message yourself", ErrInvalidPayload)
	}
	return nil
}

func (r *Router) Send(ctx context.Context, sender model.Principal, in SendIntent) (*model.ChatMessage, error) {
	if err := ValidateIntent(sender, in); err != nil {
		return nil, err
	}
	if !Authorize(sender.Role, in.Mode) {
		return nil, fmt.Errorf("%w: %s cannot send %s", ErrModeNotAllowed, sender.Role, in.Mode)
	}

	roomType, roomID := RoomFor(sender, in)
	unlock := r.locks.Lock(roomID)
	defer unlock()

	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		RoomType:  roomType,
		RoomID:    roomID,
		SenderID:  sender.UserID,
		Text:      strings.TrimSpace(in.Text),
		CreatedAt: r.now().UTC(),
		ReadBy:    []string{},
	}
	if in.Mode == ModeDirect {
		msg.ReceiverID = in.ToUserID
	}
	if err := r.store.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	metrics.IncrementChatMessage(string(in.Mode))

	frame, err := NewFrame(EventMessage, msg)
	if err != nil {
		return msg, nil
	}
	if err := r.fanout.Deliver(ctx, FanoutTargets(sender, in), frame); err != nil {
		logger.WithTrace(ctx, r.logger).Warn("chat fan-out failed",
			zap.String("room_id", roomID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// RejectCode maps a Send error to the code carried by chat:rejected.
func RejectCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrModeNotAllowed):
		return "mode_not_allowed"
	default:
		return "internal"
	}
}
