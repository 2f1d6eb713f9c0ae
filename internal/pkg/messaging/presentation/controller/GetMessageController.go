package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	cacheport "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/middleware"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// GetMessageController serves a conversation's full message history,
// ascending by creation time (one controller per endpoint).
type GetMessageController struct {
	Conv *usecase.GetConversationUseCase
	UC   *usecase.GetMessageUseCase
}

func NewGetMessageController(repo repository.MessageRepository, cache cacheport.Cache) *GetMessageController {
	return &GetMessageController{
		Conv: usecase.NewGetConversationUseCase(repo, cache),
		UC:   usecase.NewGetMessageUseCase(repo),
	}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
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

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		conv, err := h.Conv.Execute(ctx, usecase.GetConversationInput{ConversationID: conversationID})
		if err != nil || !conv.HasParticipant(viewerID) {
			if err != nil && errors.Is(err, usecase.ErrPersistence) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		msgs, err := h.UC.Execute(ctx, usecase.GetMessageInput{ConversationID: conversationID})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if msgs == nil {
			msgs = []messaging.Message{}
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"count":    len(msgs),
		})
	}
}
