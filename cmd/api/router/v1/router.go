package v1

import (
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	cport "go-dispatch/internal/infrastructure/cache/port"
	store "go-dispatch/internal/infrastructure/docstore/port"
	qport "go-dispatch/internal/infrastructure/queue/port"
	"go-dispatch/internal/infrastructure/realtime"
	httpHandler "go-dispatch/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, s store.Store, c cport.Cache, q qport.Client, router *realtime.Router, logger *log.Logger) {
	v1 := r.Group("/api/v1")
	// Pass the store, cache and queue client down to the HTTP layer
	httpHandler.RegisterRoutes(v1, s, c, q, router, logger)
}
