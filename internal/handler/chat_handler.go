package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectportal/internal/chat"
)

type ChatHandler struct {
	history *chat.History
	logger  *zap.Logger
}

func NewChatHandler(history *chat.History, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{history: history, logger: logger}
}

// Direct handles GET /chat/direct/:userId
func (h *ChatHandler) Direct(c *gin.Context) {
	msgs, err := h.history.Direct(c.Request.Context(), principal(c).UserID, c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Broadcast handles GET /chat/broadcast?source=admin
func (h *ChatHandler) Broadcast(c *gin.Context) {
	msgs, err := h.history.Broadcast(c.Request.Context(), principal(c), c.Query("source"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
