package http

import (
	"github.com/gin-gonic/gin"

	cacheport "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/port"
	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/controller"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, repo repository.MessageRepository, cache cacheport.Cache, broker pubsubport.Broker, queue qport.Client) {
	getConvCtl := controller.NewGetConversationController(repo, cache)
	getMsgCtl := controller.NewGetMessageController(repo, cache)
	sendMsgCtl := controller.NewSendMessageController(repo, broker, queue)
	socketCtl := controller.NewConversationSocketController(repo, broker, queue)

	// GET /api/v1/conversations/:conversationId -> conversation metadata
	g.GET("/conversations/:conversationId", getConvCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> full history
	g.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	g.POST("/conversations/:conversationId/messages", sendMsgCtl.Handle())

	// GET /api/v1/conversations/ws -> websocket endpoint for live sessions
	g.GET("/conversations/ws", socketCtl.Handle())
}
