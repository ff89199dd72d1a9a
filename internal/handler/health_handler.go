package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ytqa/internal/index"
	"github.com/xxxsen/ytqa/internal/pkg/response"
	"github.com/xxxsen/ytqa/internal/session"
)

type HealthHandler struct {
	coordinator *index.Coordinator
	pool        *session.Pool
}

func NewHealthHandler(coordinator *index.Coordinator, pool *session.Pool) *HealthHandler {
	return &HealthHandler{coordinator: coordinator, pool: pool}
}

func (h *HealthHandler) Health(c *gin.Context) {
	counts := h.coordinator.Counts()
	response.Success(c, gin.H{
		"status":          "ok",
		"videos":          counts,
		"active_sessions": h.pool.ActiveCount(),
	})
}
