package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	cacheAdapter "go-dispatch/internal/infrastructure/cache/adapter"
	cport "go-dispatch/internal/infrastructure/cache/port"
	storeAdapter "go-dispatch/internal/infrastructure/docstore/adapter"
	store "go-dispatch/internal/infrastructure/docstore/port"
	queueAdapter "go-dispatch/internal/infrastructure/queue/adapter"
	qport "go-dispatch/internal/infrastructure/queue/port"
	"go-dispatch/internal/infrastructure/realtime"

	v1 "go-dispatch/cmd/api/router/v1"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "api",
	})

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env file not found or could not be loaded", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docStore, err := newStoreFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("could not connect to document store", "err", err)
	}
	defer docStore.Close(context.Background())

	// Redis and the task queue are optional; without them the directory
	// still works, only profile caching and unread reconciliation are off.
	var cache cport.Cache
	if c, err := cacheAdapter.NewRedisAdapterFromEnv(); err != nil {
		logger.Warn("profile cache disabled", "err", err)
	} else {
		cache = c
		defer c.Close()
	}

	var queue qport.Client
	if q, err := queueAdapter.NewAsynqClientFromEnv(); err != nil {
		logger.Warn("task queue disabled", "err", err)
	} else {
		queue = q
		defer q.Close()
	}

	router := realtime.NewRouter()
	defer router.Close()

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})

	v1.RegisterRoutes(r, docStore, cache, queue, router, logger)

	// Start HTTP server (blocks until shutdown)
	if err := r.Run(); err != nil {
		logger.Fatal("http server stopped", "err", err)
	}
}

// newStoreFromEnv picks the document store backend. DOCSTORE=memory runs
// everything in-process, anything else connects to Mongo.
func newStoreFromEnv(ctx context.Context, logger *log.Logger) (store.Store, error) {
	if os.Getenv("DOCSTORE") == "memory" {
		logger.Info("using in-memory document store")
		return storeAdapter.NewMemoryStore(), nil
	}
	return storeAdapter.NewMongoStoreFromEnv(ctx, logger)
}
