package http

import (
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	cport "go-dispatch/internal/infrastructure/cache/port"
	store "go-dispatch/internal/infrastructure/docstore/port"
	qport "go-dispatch/internal/infrastructure/queue/port"
	"go-dispatch/internal/infrastructure/realtime"
	"go-dispatch/internal/pkg/chat/presentation/controller"
)

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, s store.Store, c cport.Cache, q qport.Client, router *realtime.Router, logger *log.Logger) {
	sendMsgCtl := controller.NewSendMessageController(s, logger)
	getMsgCtl := controller.NewGetMessagesController(s, logger)
	markReadCtl := controller.NewMarkReadController(s, logger)
	markAllCtl := controller.NewMarkAllReadController(s, q, logger)
	listCtl := controller.NewListConversationsController(s, c, logger)
	socketCtl := controller.NewChatSocketController(s, c, router, logger)

	// POST /api/v1/chat/:userId/with/:otherId -> send a message
	g.POST("/chat/:userId/with/:otherId", sendMsgCtl.Handle())

	// GET /api/v1/chat/:userId/with/:otherId/messages -> full conversation, oldest first
	g.GET("/chat/:userId/with/:otherId/messages", getMsgCtl.Handle())

	// POST /api/v1/chat/:userId/with/:otherId/read -> mark every unread message read
	g.POST("/chat/:userId/with/:otherId/read", markAllCtl.Handle())

	// POST /api/v1/chat/:userId/with/:otherId/read/:messageId -> mark one message read
	g.POST("/chat/:userId/with/:otherId/read/:messageId", markReadCtl.Handle())

	// GET /api/v1/chat/:userId/conversations -> conversation directory
	g.GET("/chat/:userId/conversations", listCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", socketCtl.Handle())
}
