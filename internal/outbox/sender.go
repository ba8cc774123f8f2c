// Package outbox owns outgoing messages: the optimistic local insert, the
// durable send queue, and the reconciliation of client-local ids with the
// server's once a send is acknowledged.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/delivery"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/store"
)

const pollInterval = 500 * time.Millisecond

// MessageSender is the interface for delivering a message to the backend.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, req rest.SendRequest) (*rest.Message, error)
}

// Sender drains the outbox and delivers queued messages.
type Sender struct {
	db     *store.DB
	sender MessageSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger.Named("outbox"),
	}
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Enqueue queues a message for delivery and inserts it into the local
// thread immediately in "sending" status, so the UI shows it at the tail
// before the network is touched. Returns the optimistic message.
func (s *Sender) Enqueue(chatID, body, messageType string) (*store.Message, error) {
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, chatID, body, messageType); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ChatID:      chatID,
		MsgID:       clientMsgID,
		Body:        body,
		MessageType: messageType,
		FromMe:      true,
		Status:      delivery.Sending,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := s.db.UpsertMessage(msg); err != nil {
		return nil, err
	}
	if err := s.db.TouchChatLastMessage(msg, preview(msg)); err != nil {
		return nil, err
	}

	s.publishUpserted(chatID, clientMsgID)
	return msg, nil
}

// Retry requeues a single failed send. Only failed entries can be
// retried; anything else reports false.
func (s *Sender) Retry(clientMsgID string) (bool, error) {
	ok, err := s.db.RequeueOutbox(clientMsgID)
	if err != nil || !ok {
		return ok, err
	}
	s.setMessageStatus(clientMsgID, delivery.Sending)
	return true, nil
}

// RetryAll requeues every failed send. Each entry is retried
// independently; one failure does not stop the rest.
func (s *Sender) RetryAll() (int, error) {
	failed, err := s.db.FailedOutbox()
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, entry := range failed {
		ok, err := s.Retry(entry.ClientMsgID)
		if err != nil {
			s.logger.Error("retry failed",
				zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		if ok {
			retried++
		}
	}
	return retried, nil
}

// FailedCount reports how many sends await a manual retry.
func (s *Sender) FailedCount() int {
	failed, err := s.db.FailedOutbox()
	if err != nil {
		return 0
	}
	return len(failed)
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID))
		return
	}
	s.setMessageStatus(entry.ClientMsgID, delivery.Sending)

	resp, err := s.sender.SendMessage(ctx, entry.ChatID, rest.SendRequest{
		ClientMsgID: entry.ClientMsgID,
		Content:     entry.Body,
		Type:        entry.MessageType,
	})
	if err != nil {
		s.logger.Error("send failed", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.Int("attempts", entry.Attempts+1))
		_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
		s.setMessageStatus(entry.ClientMsgID, delivery.Failed)
		s.bus.Publish(bus.E(bus.KindMessageSendFailed, map[string]string{
			"chat_id":       entry.ChatID,
			"client_msg_id": entry.ClientMsgID,
			"error":         err.Error(),
		}))
		return
	}

	// The server may ack straight to delivered on the fast path. Anything
	// outside the confirmation chain falls back to sent.
	ackStatus := delivery.Status(resp.Status)
	if delivery.Rank(ackStatus) < delivery.Rank(delivery.Sent) {
		ackStatus = delivery.Sent
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, resp.ID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID))
	}
	if err := s.db.ReconcileMessageID(entry.ClientMsgID, resp.ID, ackStatus); err != nil {
		s.logger.Error("id reconciliation failed", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("server_msg_id", resp.ID))
		return
	}
	if last, err := s.db.IsLastMessage(entry.ChatID, resp.ID); err == nil && last {
		_ = s.db.SetChatLastMessageStatus(entry.ChatID, string(ackStatus))
	}

	s.logger.Info("message sent",
		zap.String("client_msg_id", entry.ClientMsgID),
		zap.String("server_msg_id", resp.ID))
	s.bus.Publish(bus.E(bus.KindMessageSendAck, map[string]string{
		"chat_id":       entry.ChatID,
		"client_msg_id": entry.ClientMsgID,
		"server_msg_id": resp.ID,
	}))
	s.publishUpserted(entry.ChatID, resp.ID)
}

// setMessageStatus moves the optimistic message along the delivery state
// machine, ignoring steps the machine rejects.
func (s *Sender) setMessageStatus(msgID string, target delivery.Status) {
	msg, err := s.db.GetMessage(msgID)
	if err != nil || msg == nil {
		return
	}
	steps, err := delivery.Path(msg.Status, target)
	if err != nil {
		s.logger.Debug("status step rejected", zap.Error(err), zap.String("msg_id", msgID))
		return
	}
	from := msg.Status
	for _, step := range steps {
		if err := s.db.SetMessageStatus(msgID, step); err != nil {
			return
		}
		s.bus.Publish(bus.E(bus.KindMessageStatusChanged, delivery.Change{
			ChatID: msg.ChatID,
			MsgID:  msgID,
			From:   from,
			To:     step,
		}))
		from = step
	}
	if len(steps) > 0 {
		if last, err := s.db.IsLastMessage(msg.ChatID, msgID); err == nil && last {
			_ = s.db.SetChatLastMessageStatus(msg.ChatID, string(from))
		}
	}
}

func (s *Sender) publishUpserted(chatID, msgID string) {
	s.bus.Publish(bus.E(bus.KindMessageUpserted, map[string]string{
		"chat_id": chatID,
		"msg_id":  msgID,
	}))
	s.bus.Publish(bus.E(bus.KindChatUpserted, chatID))
}

const previewLen = 100

func preview(m *store.Message) string {
	switch m.MessageType {
	case store.TypeText:
		if len(m.Body) <= previewLen {
			return m.Body
		}
		// Cap at previewLen runes so a multi-byte character is never
		// split mid-sequence.
		runes := []rune(m.Body)
		if len(runes) <= previewLen {
			return m.Body
		}
		return string(runes[:previewLen])
	default:
		return "[" + m.MessageType + "]"
	}
}
