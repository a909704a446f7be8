package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	store "go-dispatch/internal/infrastructure/docstore/port"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// GetMessagesController returns the full conversation between two users,
// oldest first.
type GetMessagesController struct {
	UC *usecase.GetMessagesUseCase
}

func NewGetMessagesController(s store.Store, logger *log.Logger) *GetMessagesController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &GetMessagesController{UC: usecase.NewGetMessagesUseCase(repo)}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := c.Param("userId")
		otherID := c.Param("otherId")
		if selfID == "" || otherID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and otherId are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetMessagesInput{UserA: selfID, UserB: otherID})
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not load messages"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}
