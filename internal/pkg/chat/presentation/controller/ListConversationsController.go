package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	cache "go-dispatch/internal/infrastructure/cache/port"
	store "go-dispatch/internal/infrastructure/docstore/port"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// ListConversationsController returns the caller's conversation directory,
// most recent activity first.
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(s store.Store, c cache.Cache, logger *log.Logger) *ListConversationsController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &ListConversationsController{UC: usecase.NewListConversationsUseCase(repo, c, logger)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := c.Param("userId")
		if selfID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		summaries, err := h.UC.Execute(ctx, selfID)
		if err != nil {
			if errors.Is(err, chat.ErrMissingParticipant) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load conversations"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"conversations": summaries})
	}
}
