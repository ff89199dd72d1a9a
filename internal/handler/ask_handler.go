package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ytqa/internal/model"
	"github.com/xxxsen/ytqa/internal/pkg/errcode"
	"github.com/xxxsen/ytqa/internal/pkg/mdrender"
	"github.com/xxxsen/ytqa/internal/pkg/response"
	"github.com/xxxsen/ytqa/internal/service"
)

type AskHandler struct {
	ask *service.AskService
}

func NewAskHandler(ask *service.AskService) *AskHandler {
	return &AskHandler{ask: ask}
}

type askRequest struct {
	VideoID   string `json:"video_id"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	Answer     string            `json:"answer"`
	AnswerHTML string            `json:"answer_html"`
	References []model.Reference `json:"references"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.ask.Ask(c.Request.Context(), req.VideoID, req.Question, sessionID(c, req.SessionID))
	if err != nil {
		handleError(c, err)
		return
	}
	references := result.References
	if references == nil {
		references = []model.Reference{}
	}
	response.Success(c, askResponse{
		Answer:     result.Answer,
		AnswerHTML: mdrender.ToHTML(result.Answer),
		References: references,
	})
}
