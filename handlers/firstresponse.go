package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go-firstresponder/apperrors"
	"go-firstresponder/memory"
	"go-firstresponder/orchestrator"
	"go-firstresponder/types"
)

type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, id string, fb types.Feedback) error
}

type firstResponseRequest struct {
	Message        string   `json:"message"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	Language       string   `json:"language"`
	ConversationID string   `json:"conversation_id"`
	SessionID      string   `json:"session_id"`
	MessageType    string   `json:"message_type"`
}

// FirstResponse runs a citizen message through the pipeline.
func FirstResponse(c *gin.Context, proc Processor, logger *slog.Logger) {
	var request firstResponseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := proc.Process(c.Request.Context(), orchestrator.Request{
		Message:        request.Message,
		Lat:            request.Lat,
		Lon:            request.Lon,
		Language:       request.Language,
		ConversationID: strings.TrimSpace(request.ConversationID),
		SessionID:      request.SessionID,
		ClientIP:       c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		MessageType:    types.MessageType(strings.ToLower(request.MessageType)),
	})
	if err != nil {
		writeError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, res)
}

type feedbackRequest struct {
	Helpful bool   `json:"helpful"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitFeedback stores a citizen's rating of an earlier response.
func SubmitFeedback(c *gin.Context, rec FeedbackRecorder, logger *slog.Logger) {
	var request feedbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if request.Rating < 0 || request.Rating > 5 {
		writeError(c, apperrors.Validation("rating", "rating must be between 0 and 5"), logger)
		return
	}

	id := c.Param("id")
	err := rec.RecordFeedback(c.Request.Context(), id, types.Feedback{
		Helpful: request.Helpful,
		Rating:  request.Rating,
		Comment: request.Comment,
		At:      time.Now().UTC(),
	})
	if errors.Is(err, memory.ErrUnknownInteraction) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no interaction with id " + id})
		return
	}
	if err != nil {
		writeError(c, err, logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "recorded": true})
}

// writeError maps error kinds to status codes. Only validation errors expose
// their message to the caller.
func writeError(c *gin.Context, err error, logger *slog.Logger) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind == apperrors.KindValidation {
		c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Msg, "field": appErr.Field})
		return
	}
	logger.Error("request failed",
		slog.String("path", c.FullPath()),
		slog.String("kind", string(apperrors.KindOf(err))),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, call 112 if you are in danger"})
}
