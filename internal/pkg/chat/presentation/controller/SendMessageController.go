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

// SendMessageController handles the send-message endpoint only (one
// controller per endpoint).
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(s store.Store, logger *log.Logger) *SendMessageController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &SendMessageController{UC: usecase.NewSendMessageUseCase(repo)}
}

// sendMessageRequest is the DTO for the HTTP request body.
type sendMessageRequest struct {
	SenderDisplayName   string `json:"sender_display_name" binding:"required"`
	ReceiverDisplayName string `json:"receiver_display_name" binding:"required"`
	Text                string `json:"text"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		selfID := c.Param("userId")
		otherID := c.Param("otherId")
		if selfID == "" || otherID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and otherId are required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			SenderID:            selfID,
			SenderDisplayName:   req.SenderDisplayName,
			ReceiverID:          otherID,
			ReceiverDisplayName: req.ReceiverDisplayName,
			Text:                req.Text,
		})
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				// transient store failure; the client may retry with the
				// same text
				c.JSON(http.StatusBadGateway, gin.H{"error": "send failed"})
			case errors.Is(err, chat.ErrEmptyMessage),
				errors.Is(err, chat.ErrSelfConversation),
				errors.Is(err, chat.ErrMissingParticipant):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusCreated, msg)
	}
}
