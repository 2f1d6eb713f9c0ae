package v1

import (
	"github.com/gin-gonic/gin"

	cacheport "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/port"
	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	httpHandler "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/http"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/presentation/middleware"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1. Every route
// is behind the identity middleware; the upstream auth proxy is what proves
// who the viewer is.
func RegisterRoutes(r *gin.Engine, repo repository.MessageRepository, cache cacheport.Cache, broker pubsubport.Broker, queue qport.Client) {
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity())
	httpHandler.RegisterRoutes(v1, repo, cache, broker, queue)
}
