package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ytqa/internal/index"
	"github.com/xxxsen/ytqa/internal/model"
	"github.com/xxxsen/ytqa/internal/pkg/errcode"
	"github.com/xxxsen/ytqa/internal/pkg/response"
	"github.com/xxxsen/ytqa/internal/pkg/videoid"
)

type VideoHandler struct {
	coordinator *index.Coordinator
}

func NewVideoHandler(coordinator *index.Coordinator) *VideoHandler {
	return &VideoHandler{coordinator: coordinator}
}

type ingestRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

func (h *VideoHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	id, err := videoid.Extract(req.URL)
	if err != nil {
		response.Error(c, errcode.ErrInvalidURL, "unrecognized video url")
		return
	}
	var status model.VideoStatus
	if req.Force {
		status = h.coordinator.Reindex(c.Request.Context(), id)
	} else {
		status = h.coordinator.EnsureIndexed(c.Request.Context(), id)
	}
	response.Success(c, gin.H{"video_id": id, "status": status})
}

func (h *VideoHandler) Status(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, errcode.ErrInvalid, "video id required")
		return
	}
	info := h.coordinator.Status(id)
	response.Success(c, info)
}

func (h *VideoHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, errcode.ErrInvalid, "video id required")
		return
	}
	if err := h.coordinator.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"video_id": id})
}
