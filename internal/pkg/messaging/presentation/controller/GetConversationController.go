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

// GetConversationController serves conversation metadata (one controller per
// endpoint). Controllers take the repository port rather than a pool so
// handler tests can inject fakes.
type GetConversationController struct {
	UC *usecase.GetConversationUseCase
}

func NewGetConversationController(repo repository.MessageRepository, cache cacheport.Cache) *GetConversationController {
	return &GetConversationController{UC: usecase.NewGetConversationUseCase(repo, cache)}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
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

		conv, err := h.UC.Execute(ctx, usecase.GetConversationInput{ConversationID: conversationID})
		if err != nil {
			switch {
			case errors.Is(err, messaging.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			case errors.Is(err, usecase.ErrPersistence):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected persistence error"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		// A non-participant gets the same answer as a missing conversation.
		other, err := conv.OtherParty(viewerID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":              conv.ID,
			"other_party":     other,
			"last_message_at": conv.LastMessageAt,
			"created_at":      conv.CreatedAt,
		})
	}
}
