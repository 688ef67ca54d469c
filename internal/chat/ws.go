package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"projectportal/internal/model"
	"projectportal/internal/util"
	"projectportal/pkg/logger"
	"projectportal/pkg/metrics"
	"projectportal/pkg/rbac"
	"projectportal/pkg/trace"
)

const maxFrameBytes = 16 << 10

// Authenticator turns a bearer token into a principal.
type Authenticator interface {
	Authenticate(token string) (model.Principal, error)
}

// WSHandler upgrades authenticated requests and pumps chat frames.
type WSHandler struct {
	router      *Router
	hub         *Hub
	allocations Allocations
	auth        Authenticator
	buffer      int
	logger      *zap.Logger
}

func NewWSHandler(router *Router, hub *Hub, allocations Allocations, auth Authenticator, buffer int, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		router:      router,
		hub:         hub,
		allocations: allocations,
		auth:        auth,
		buffer:      buffer,
		logger:      logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth.Authenticate(requestToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rooms, err := h.connectRooms(r.Context(), p)
	if err != nil {
		h.logger.Error("failed to resolve chat rooms", zap.String("user_id", p.UserID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	srv := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			h.serve(conn, p, rooms)
		},
	}
	srv.ServeHTTP(w, r)
}

func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return util.ExtractToken(r)
}

func (h *WSHandler) connectRooms(ctx context.Context, p model.Principal) ([]string, error) {
	var allocations []model.Allocation
	switch p.Role {
	case rbac.RoleTeacher:
		list, err := h.allocations.ForTeacher(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		allocations = list
	case rbac.RoleStudent:
		a, err := h.allocations.ForStudent(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			allocations = []model.Allocation{*a}
		}
	}
	return ConnectRooms(p, allocations), nil
}

func (h *WSHandler) serve(conn *websocket.Conn, p model.Principal, rooms []string) {
	conn.MaxPayloadBytes = maxFrameBytes
	s := NewSession(p, rooms, h.buffer)
	h.hub.Join(s)
	metrics.LiveConnections.Inc()
	log := h.logger.With(zap.String("user_id", p.UserID), zap.String("session_id", s.ID))
	log.Info("chat connection opened", zap.Strings("rooms", rooms))

	defer func() {
		h.hub.Leave(s)
		s.Close()
		metrics.LiveConnections.Dec()
		_ = conn.Close()
		log.Info("chat connection closed")
	}()

	go s.writeLoop(func(payload []byte) error {
		return websocket.Message.Send(conn, string(payload))
	})

	base := conn.Request().Context()
	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("chat read ended", zap.Error(err))
			}
			return
		}
		ctx := trace.WithContext(base, trace.GenerateTraceID())
		h.handleFrame(ctx, s, []byte(raw))
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, s *Session, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.reject(s, "invalid_payload", "malformed frame")
		return
	}
	switch frame.Event {
	case EventSend:
		var in SendIntent
		if err := json.Unmarshal(frame.Data, &in); err != nil {
			h.reject(s, "invalid_payload", "malformed chat:send data")
			return
		}
		if _, err := h.router.Send(ctx, s.Principal, in); err != nil {
			code := RejectCode(err)
			if code == "internal" {
				logger.WithTrace(ctx, h.logger).Error("chat send failed", zap.Error(err))
				h.reject(s, code, "message could not be stored")
				return
			}
			h.reject(s, code, err.Error())
		}
	default:
		h.reject(s, "unknown_event", fmt.Sprintf("unsupported event %q", frame.Event))
	}
}

// reject answers only the offending connection.
func (h *WSHandler) reject(s *Session, code, message string) {
	metrics.IncrementChatRejected(code)
	frame, err := NewFrame(EventRejected, Rejection{Code: code, Message: message})
	if err != nil {
		return
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	s.enqueue(payload)
}
