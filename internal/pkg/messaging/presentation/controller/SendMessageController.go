package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/middleware"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageController handles the send-message endpoint only (one
// controller per endpoint). Send failures surface to the caller immediately
// so the client can keep the input for a manual retry.
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(repo repository.MessageRepository, pub pubsubport.Publisher, queue qport.Client) *SendMessageController {
	return &SendMessageController{UC: usecase.NewSendMessageUseCase(repo, pub, queue)}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}
		viewerID, ok := middleware.ViewerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: conversationID,
			SenderID:       viewerID,
			Body:           req.Body,
		})
		if err != nil {
			switch {
			case errors.Is(err, messaging.ErrEmptyMessage):
				c.JSON(http.StatusBadRequest, gin.H{"error": "message body is empty"})
			case errors.Is(err, messaging.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			case errors.Is(err, messaging.ErrNotParticipant):
				c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this conversation"})
			case errors.Is(err, usecase.ErrPersistence):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusCreated, msg)
	}
}
