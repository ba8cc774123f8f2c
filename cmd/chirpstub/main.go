// chirpstub is a development backend for the chirp client. It serves
// the REST surface and the /v1/stream WebSocket against in-memory
// state, and simulates the remote side: delivery receipts, read
// receipts, peer typing, and canned replies. A send whose content
// contains the word "fail" is rejected with a 500 so the client's
// retry path can be exercised.
package main

import (
	"flag"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/rest"
)

type server struct {
	state  *state
	hub    *hub
	logger *zap.Logger
}

func main() {
	addr := flag.String("addr", ":8480", "listen address")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	srv := &server{
		state:  newState(),
		hub:    newHub(logger),
		logger: logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	v1.GET("/chats", srv.handleListChats)
	v1.GET("/chats/:id/messages", srv.handleListMessages)
	v1.POST("/chats/:id/messages", srv.handleSendMessage)
	v1.POST("/chats/:id/typing", srv.handleTyping)
	v1.POST("/chats/:id/read", srv.handleMarkRead)
	v1.GET("/stream", func(c *gin.Context) {
		srv.hub.serve(c.Writer, c.Request)
	})

	logger.Info("chirpstub listening", zap.String("addr", *addr))
	if err := r.Run(*addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func (s *server) handleListChats(c *gin.Context) {
	c.JSON(http.StatusOK, s.state.listChats())
}

func (s *server) handleListMessages(c *gin.Context) {
	chatID := c.Param("id")
	if !s.state.chatExists(chatID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chat"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, s.state.listMessages(chatID, limit))
}

func (s *server) handleSendMessage(c *gin.Context) {
	chatID := c.Param("id")
	if !s.state.chatExists(chatID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chat"})
		return
	}
	var req rest.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.Contains(strings.ToLower(req.Content), "fail") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulated delivery failure"})
		return
	}
	msgType := req.Type
	if msgType == "" {
		msgType = "text"
	}
	msg := s.state.addMessage(rest.Message{
		ChatID:    chatID,
		SenderID:  "me",
		Content:   req.Content,
		Type:      msgType,
		Status:    "sent",
		Timestamp: time.Now().UnixMilli(),
	})
	s.logger.Info("message accepted",
		zap.String("chat_id", chatID),
		zap.String("id", msg.ID),
		zap.String("client_msg_id", req.ClientMsgID))
	c.JSON(http.StatusCreated, msg)

	go s.simulatePeer(chatID, msg.ID)
}

func (s *server) handleTyping(c *gin.Context) {
	var req rest.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) handleMarkRead(c *gin.Context) {
	chatID := c.Param("id")
	chat, ok := s.state.markRead(chatID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chat"})
		return
	}
	c.Status(http.StatusNoContent)
	s.hub.broadcast(rest.Envelope{Kind: rest.KindChatUpdate, ChatID: chatID, Chat: chat})
}

// simulatePeer walks a sent message through delivered and seen, then
// has the other participant type for a moment and reply.
func (s *server) simulatePeer(chatID, msgID string) {
	pushStatus := func(after time.Duration, status string) {
		time.Sleep(after)
		if s.state.setStatus(chatID, msgID, status) {
			s.hub.broadcast(rest.Envelope{
				Kind:      rest.KindMessageStatus,
				ChatID:    chatID,
				MessageID: msgID,
				Status:    status,
			})
		}
	}
	pushStatus(300*time.Millisecond, "delivered")
	pushStatus(1200*time.Millisecond, "seen")

	peer := s.state.peerFor(chatID)
	s.hub.broadcast(rest.Envelope{
		Kind:     rest.KindTyping,
		ChatID:   chatID,
		SenderID: peer.ID,
		IsTyping: true,
	})
	time.Sleep(1500 * time.Millisecond)

	reply := s.state.addMessage(rest.Message{
		ChatID:     chatID,
		SenderID:   peer.ID,
		SenderName: peer.Name,
		Content:    "Got it, thanks!",
		Type:       "text",
		Status:     "sent",
		Timestamp:  time.Now().UnixMilli(),
	})
	s.hub.broadcast(rest.Envelope{
		Kind:     rest.KindTyping,
		ChatID:   chatID,
		SenderID: peer.ID,
		IsTyping: false,
	})
	s.hub.broadcast(rest.Envelope{
		Kind:    rest.KindMessageNew,
		ChatID:  chatID,
		Message: &reply,
	})
}
