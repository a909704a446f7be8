package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// MarkReadController flags a single message as read. Repeated calls for
// the same message succeed without touching the stored read timestamp.
type MarkReadController struct {
	UC *usecase.MarkReadUseCase
}

func NewMarkReadController(s store.Store, logger *log.Logger) *MarkReadController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &MarkReadController{UC: usecase.NewMarkReadUseCase(repo)}
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := c.Param("userId")
		otherID := c.Param("otherId")
		messageID := c.Param("messageId")
		if selfID == "" || otherID == "" || messageID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId, otherId and messageId are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.MarkReadInput{
			UserA:     selfID,
			UserB:     otherID,
			MessageID: messageID,
		})
		if err != nil {
			if errors.Is(err, chat.ErrUnknownConversation) {
				c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not mark message read"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "read"})
	}
}
