package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ytqa/internal/pkg/errcode"
	"github.com/xxxsen/ytqa/internal/pkg/response"
	"github.com/xxxsen/ytqa/internal/session"
)

type SessionHandler struct {
	pool *session.Pool
}

func NewSessionHandler(pool *session.Pool) *SessionHandler {
	return &SessionHandler{pool: pool}
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, errcode.ErrInvalid, "session id required")
		return
	}
	removed := h.pool.DeleteSession(id)
	response.Success(c, gin.H{"session_id": id, "removed": removed})
}
