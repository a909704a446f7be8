package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	cache "go-dispatch/internal/infrastructure/cache/port"
	store "go-dispatch/internal/infrastructure/docstore/port"
	"go-dispatch/internal/infrastructure/realtime"
	chat "go-dispatch/internal/pkg/chat/application/domain"
	"go-dispatch/internal/pkg/chat/application/usecase"
	repoAdapter "go-dispatch/internal/pkg/chat/persistence/repository/adapter"
)

// ChatSocketController handles the websocket endpoint for realtime chat
// traffic. Each connection can watch individual conversations and the
// caller's conversation directory; every watch pushes a fresh snapshot on
// each underlying change.
type ChatSocketController struct {
	router          *realtime.Router
	sendMessageUC   *usecase.SendMessageUseCase
	subscribeUC     *usecase.SubscribeConversationUseCase
	markAllReadUC   *usecase.MarkAllReadUseCase
	listUC          *usecase.ListConversationsUseCase
	logger          *log.Logger
	inflightTimeout time.Duration
}

func NewChatSocketController(s store.Store, c cache.Cache, router *realtime.Router, logger *log.Logger) *ChatSocketController {
	repo := repoAdapter.NewDocChatRepository(s, logger)
	return &ChatSocketController{
		router:          router,
		sendMessageUC:   usecase.NewSendMessageUseCase(repo),
		subscribeUC:     usecase.NewSubscribeConversationUseCase(repo),
		markAllReadUC:   usecase.NewMarkAllReadUseCase(repo, logger),
		listUC:          usecase.NewListConversationsUseCase(repo, c, logger),
		logger:          logger,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

type inboundFrame struct {
	Type                string `json:"type"`
	OtherID             string `json:"other_id,omitempty"`
	SenderDisplayName   string `json:"sender_display_name,omitempty"`
	ReceiverDisplayName string `json:"receiver_display_name,omitempty"`
	Text                string `json:"text,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type    string `json:"type"`
	OtherID string `json:"other_id,omitempty"`
}

type outboundConversation struct {
	Type     string         `json:"type"`
	OtherID  string         `json:"other_id"`
	Messages []chat.Message `json:"messages"`
}

type outboundSummaries struct {
	Type      string                     `json:"type"`
	Summaries []chat.ConversationSummary `json:"summaries"`
}

type sentAck struct {
	Type      string `json:"type"`
	OtherID   string `json:"other_id"`
	MessageID string `json:"message_id"`
}

const defaultReadTimeout = 60 * time.Second

// socketSession tracks the live watches owned by one websocket connection.
// All mutation happens on the read-loop goroutine; store callbacks only
// write to the connection's send channel.
type socketSession struct {
	watches     map[string]store.CancelFunc
	coordinator *usecase.SyncCoordinator
	dirCancel   store.CancelFunc
}

func (s *socketSession) dispose() {
	for _, cancel := range s.watches {
		cancel()
	}
	s.watches = map[string]store.CancelFunc{}
	if s.dirCancel != nil {
		s.dirCancel()
		s.dirCancel = nil
		s.coordinator = nil
	}
}

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.router.Attach(conn)

		session := &socketSession{watches: map[string]store.CancelFunc{}}
		defer func() {
			session.dispose()
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		handshakeAck := ackFrame{Type: "connected"}
		if payload, err := json.Marshal(handshakeAck); err == nil {
			_ = conn.Send(payload)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "watch":
				ctl.handleWatch(c, conn, session, frame)
			case "unwatch":
				ctl.handleUnwatch(conn, session, frame)
			case "summaries":
				ctl.handleSummaries(c, conn, session)
			case "unwatch_summaries":
				ctl.handleUnwatchSummaries(conn, session)
			case "message":
				ctl.handleMessage(c, conn, frame)
			case "read":
				ctl.handleRead(c, conn, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleWatch(c *gin.Context, conn *realtime.Connection, session *socketSession, frame inboundFrame) {
	if frame.OtherID == "" {
		ctl.replyError(conn, "bad_request", "other_id is required")
		return
	}

	key := chat.DeriveKey(conn.UserID, frame.OtherID)
	if _, ok := session.watches[key]; ok {
		// already watching; the ack is enough
		ctl.reply(conn, ackFrame{Type: "watching", OtherID: frame.OtherID})
		return
	}

	otherID := frame.OtherID
	cancel, err := ctl.subscribeUC.Execute(context.WithoutCancel(c.Request.Context()),
		usecase.SubscribeConversationInput{UserA: conn.UserID, UserB: frame.OtherID},
		func(msgs []chat.Message) {
			ctl.reply(conn, outboundConversation{Type: "conversation", OtherID: otherID, Messages: msgs})
		})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	session.watches[key] = cancel
	ctl.reply(conn, ackFrame{Type: "watching", OtherID: frame.OtherID})
}

func (ctl *ChatSocketController) handleUnwatch(conn *realtime.Connection, session *socketSession, frame inboundFrame) {
	if frame.OtherID == "" {
		ctl.replyError(conn, "bad_request", "other_id is required")
		return
	}

	key := chat.DeriveKey(conn.UserID, frame.OtherID)
	if cancel, ok := session.watches[key]; ok {
		cancel()
		delete(session.watches, key)
	}
	ctl.reply(conn, ackFrame{Type: "unwatched", OtherID: frame.OtherID})
}

func (ctl *ChatSocketController) handleSummaries(c *gin.Context, conn *realtime.Connection, session *socketSession) {
	if session.dirCancel != nil {
		ctl.reply(conn, ackFrame{Type: "summaries_watching"})
		return
	}

	coordinator := usecase.NewSyncCoordinator(ctl.listUC)
	cancel, err := coordinator.Start(context.WithoutCancel(c.Request.Context()), conn.UserID,
		func(summaries []chat.ConversationSummary) {
			ctl.reply(conn, outboundSummaries{Type: "summaries", Summaries: summaries})
		})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	session.coordinator = coordinator
	session.dirCancel = cancel
	ctl.reply(conn, ackFrame{Type: "summaries_watching"})
}

func (ctl *ChatSocketController) handleUnwatchSummaries(conn *realtime.Connection, session *socketSession) {
	if session.dirCancel != nil {
		session.dirCancel()
		session.dirCancel = nil
		session.coordinator = nil
	}
	ctl.reply(conn, ackFrame{Type: "summaries_unwatched"})
}

func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.OtherID == "" {
		ctl.replyError(conn, "bad_request", "other_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.sendMessageUC.Execute(ctx, usecase.SendMessageInput{
		SenderID:            conn.UserID,
		SenderDisplayName:   frame.SenderDisplayName,
		ReceiverID:          frame.OtherID,
		ReceiverDisplayName: frame.ReceiverDisplayName,
		Text:                frame.Text,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	// Watchers on either side get the new message through their live
	// queries; the sender only needs the ack.
	ctl.reply(conn, sentAck{Type: "sent", OtherID: frame.OtherID, MessageID: msg.ID})
}

func (ctl *ChatSocketController) handleRead(c *gin.Context, conn *realtime.Connection, frame inboundFrame) {
	if frame.OtherID == "" {
		ctl.replyError(conn, "bad_request", "other_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if err := ctl.markAllReadUC.Execute(ctx, usecase.MarkAllReadInput{
		SelfID:  conn.UserID,
		OtherID: frame.OtherID,
	}); err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	ctl.reply(conn, ackFrame{Type: "read_ack", OtherID: frame.OtherID})
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		ctl.replyError(conn, "internal_error", "unexpected persistence error")
	case errors.Is(err, chat.ErrUnknownConversation):
		ctl.replyError(conn, "not_found", "unknown conversation")
	default:
		ctl.replyError(conn, "bad_request", err.Error())
	}
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		ctl.logger.Warn("could not encode websocket frame", "err", err)
		return
	}
	_ = conn.Send(payload)
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message})
}
