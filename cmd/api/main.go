package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cacheadapter "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/adapter"
	"github.com/paulostering/burpp25-sub000/internal/infrastructure/database"
	"github.com/paulostering/burpp25-sub000/internal/infrastructure/metrics"
	pubsubadapter "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/adapter"
	queueadapter "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/adapter"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/task"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
	repoadapter "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/adapter"

	v1 "github.com/paulostering/burpp25-sub000/cmd/api/router/v1"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := database.NewPoolFromEnv(connectCtx)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	cache, err := cacheadapter.NewRedisCache()
	if err != nil {
		log.Fatalf("failed to connect to redis cache: %v", err)
	}
	defer cache.Close()

	broker, err := pubsubadapter.NewRedisBroker()
	if err != nil {
		log.Fatalf("failed to connect to redis pubsub: %v", err)
	}
	defer broker.Close()

	queueClient, err := queueadapter.NewAsynqClientFromEnv()
	if err != nil {
		log.Fatalf("failed to create queue client: %v", err)
	}
	defer queueClient.Close()

	repo := repoadapter.NewPgMessageRepository(pool)

	// Background worker runs in-process alongside the API.
	worker, err := queueadapter.NewAsynqServer()
	if err != nil {
		log.Fatalf("failed to create queue server: %v", err)
	}
	task.RegisterConversationTouchTask(worker, repo, cache, usecase.ConversationCacheKey)
	go func() {
		if err := worker.Run(ctx); err != nil {
			log.Printf("queue worker stopped: %v", err)
		}
	}()

	r := gin.Default()
	r.Use(metrics.Middleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1.RegisterRoutes(r, repo, cache, broker, queueClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
