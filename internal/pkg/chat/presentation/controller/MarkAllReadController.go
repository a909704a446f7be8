package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	store "go-dispatch/internal/infrastructure/docstore/port"
	queue "go-dispatch/internal/infrastructure/queue/port"
	"go-dispatch/internal/pkg/chat/application/task"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// MarkAllReadController marks every unread message addressed to the caller
// in one conversation. After a successful bulk mark it enqueues an unread
// reconciliation task; enqueue failures are logged and do not fail the
// request.
type MarkAllReadController struct {
	UC     *usecase.MarkAllReadUseCase
	Queue  queue.Client
	Logger *log.Logger
}

func NewMarkAllReadController(s store.Store, q queue.Client, logger *log.Logger) *MarkAllReadController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &MarkAllReadController{
		UC:     usecase.NewMarkAllReadUseCase(repo, logger),
		Queue:  q,
		Logger: logger,
	}
}

func (h *MarkAllReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := c.Param("userId")
		otherID := c.Param("otherId")
		if selfID == "" || otherID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and otherId are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := h.UC.Execute(ctx, usecase.MarkAllReadInput{SelfID: selfID, OtherID: otherID}); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not mark conversation read"})
			return
		}

		if h.Queue != nil {
			if _, err := task.EnqueueReconcileUnread(ctx, h.Queue, selfID); err != nil {
				h.Logger.Warn("could not enqueue unread reconciliation", "userId", selfID, "err", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "read"})
	}
}
