package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	cacheAdapter "go-dispatch/internal/infrastructure/cache/adapter"
	cport "go-dispatch/internal/infrastructure/cache/port"
	storeAdapter "go-dispatch/internal/infrastructure/docstore/adapter"
	queueAdapter "go-dispatch/internal/infrastructure/queue/adapter"
	"go-dispatch/internal/pkg/chat/application/task"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "worker",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug(".env file not found or could not be loaded", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docStore, err := storeAdapter.NewMongoStoreFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("could not connect to document store", "err", err)
	}
	defer docStore.Close(context.Background())

	var cache cport.Cache
	if c, err := cacheAdapter.NewRedisAdapterFromEnv(); err != nil {
		logger.Warn("profile cache disabled", "err", err)
	} else {
		cache = c
		defer c.Close()
	}

	srv, err := queueAdapter.NewAsynqServerFromEnv(logger)
	if err != nil {
		logger.Fatal("could not start task server", "err", err)
	}

	repo := repoAdapter.NewDocChatRepository(docStore, logger)
	task.RegisterReconcileUnreadTask(srv, repo, cache, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started")
	if err := srv.Run(runCtx); err != nil {
		logger.Fatal("task server stopped", "err", err)
	}
}
