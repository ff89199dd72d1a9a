package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ytqa/internal/middleware"
)

type RouterDeps struct {
	Videos          *VideoHandler
	Ask             *AskHandler
	Sessions        *SessionHandler
	Health          *HealthHandler
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	limited.POST("/videos/ingest", deps.Videos.Ingest)
	limited.POST("/ask", deps.Ask.Ask)

	api.GET("/videos/:id", deps.Videos.Status)
	api.DELETE("/videos/:id", deps.Videos.Delete)
	api.DELETE("/sessions/:id", deps.Sessions.Delete)
	api.GET("/health", deps.Health.Health)
}
