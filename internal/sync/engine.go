// Package sync ingests server events into the local store. Ingestion is
// idempotent and delivery statuses only ever move forward, so replayed or
// out-of-order events cannot regress local state.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/delivery"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/status"
	"github.com/dkzef/chirp/internal/store"
)

const previewLen = 100

// Backend is the subset of the REST client the engine needs for the
// initial pull after (re)connecting.
type Backend interface {
	ListChats(ctx context.Context) ([]rest.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]rest.Message, error)
}

// Engine applies remote events from the bus to the store.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	sm      *status.Machine
	backend Backend
	selfID  string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewEngine creates a sync engine. selfID is the authenticated user's id,
// used to tell own messages from incoming ones.
func NewEngine(db *store.DB, b *bus.Bus, sm *status.Machine, backend Backend, selfID string, logger *zap.Logger) *Engine {
	return &Engine{
		db:      db,
		bus:     b,
		sm:      sm,
		backend: backend,
		selfID:  selfID,
		logger:  logger.Named("sync"),
	}
}

// Start subscribes to remote and stream events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("remote.", 256)
	connCh, unsubConn := e.bus.Subscribe("stream.", 16)

	go func() {
		defer unsub()
		defer unsubConn()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case evt := <-connCh:
				if evt.Kind == bus.KindStreamConnected {
					e.refresh(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	env, ok := evt.Payload.(rest.Envelope)
	if !ok {
		return
	}

	var err error
	switch evt.Kind {
	case bus.KindRemoteMessage:
		if env.Message == nil {
			return
		}
		err = e.IngestMessage(messageFromWire(env.Message, e.selfID))
	case bus.KindRemoteStatus:
		err = e.ApplyStatus(env.ChatID, env.MessageID, delivery.Status(env.Status))
	case bus.KindRemoteEdited:
		err = e.ApplyEdit(env.ChatID, env.MessageID, env.Content)
	case bus.KindRemoteChat:
		if env.Chat == nil {
			return
		}
		err = e.IngestChat(env.Chat)
	}
	if err != nil {
		e.logger.Error("failed to apply remote event",
			zap.Error(err),
			zap.String("kind", evt.Kind),
			zap.String("chat_id", env.ChatID))
	}
}

// IngestMessage processes a single live message into the store
// (idempotent). Incoming messages bump the chat's unread counter;
// replays do not, because the upsert reports whether the row was new.
func (e *Engine) IngestMessage(msg *store.Message) error {
	return e.ingest(msg, true)
}

// ingest is the shared path for live frames and the reconnect pull.
// During the pull the server's unread_count on the chat is
// authoritative, so history never bumps the counter a second time.
func (e *Engine) ingest(msg *store.Message, bumpUnread bool) error {
	known, err := e.db.GetMessage(msg.MsgID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if known != nil {
		// A replayed frame carries the message at whatever status the
		// server last serialized. The stored status may be further along,
		// so only forward movement through the chain is taken.
		msg.Status = reconciledStatus(known.Status, msg.Status)
		msg.Edited = msg.Edited || known.Edited
	}

	if err := e.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	if err := e.db.TouchChatLastMessage(msg, truncate(msg.Body, previewLen)); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if bumpUnread && known == nil && !msg.FromMe {
		if err := e.db.IncrementUnread(msg.ChatID); err != nil {
			return fmt.Errorf("bump unread: %w", err)
		}
	}

	e.bus.Publish(bus.E(bus.KindMessageUpserted, map[string]string{
		"chat_id": msg.ChatID,
		"msg_id":  msg.MsgID,
	}))
	e.bus.Publish(bus.E(bus.KindChatUpserted, msg.ChatID))
	return nil
}

// ApplyStatus advances a message's delivery status toward target, filling
// any skipped steps so "seen" implies "delivered". Regressions and unknown
// message ids are dropped.
func (e *Engine) ApplyStatus(chatID, msgID string, target delivery.Status) error {
	if !delivery.Known(target) {
		return fmt.Errorf("unknown status %q for message %s", target, msgID)
	}

	msg, err := e.db.GetMessage(msgID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if msg == nil {
		// Status for a message this client never stored. Common when an
		// ack races the reconnection pull, so just drop it.
		e.logger.Debug("status for unknown message dropped",
			zap.String("msg_id", msgID),
			zap.String("status", string(target)))
		return nil
	}

	steps, err := delivery.Path(msg.Status, target)
	if err != nil {
		return fmt.Errorf("status %s -> %s for %s: %w", msg.Status, target, msgID, err)
	}
	for _, step := range steps {
		if err := e.db.SetMessageStatus(msgID, step); err != nil {
			return fmt.Errorf("set status %s: %w", step, err)
		}
		e.bus.Publish(bus.E(bus.KindMessageStatusChanged, delivery.Change{
			ChatID: chatID,
			MsgID:  msgID,
			From:   msg.Status,
			To:     step,
		}))
		msg.Status = step
	}
	if len(steps) == 0 {
		return nil
	}

	last, err := e.db.IsLastMessage(chatID, msgID)
	if err == nil && last {
		_ = e.db.SetChatLastMessageStatus(chatID, string(msg.Status))
	}
	return nil
}

// ApplyEdit replaces a message's body. Edits only apply to messages the
// server has acknowledged; anything else is dropped.
func (e *Engine) ApplyEdit(chatID, msgID, body string) error {
	msg, err := e.db.GetMessage(msgID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if msg == nil {
		e.logger.Debug("edit for unknown message dropped", zap.String("msg_id", msgID))
		return nil
	}
	if !delivery.Editable(msg.Status) {
		e.logger.Debug("edit for unacknowledged message dropped",
			zap.String("msg_id", msgID),
			zap.String("status", string(msg.Status)))
		return nil
	}

	if err := e.db.MarkMessageEdited(msgID, body); err != nil {
		return fmt.Errorf("mark edited: %w", err)
	}
	if last, err := e.db.IsLastMessage(chatID, msgID); err == nil && last {
		msg.Body = body
		if err := e.db.TouchChatLastMessage(msg, truncate(body, previewLen)); err != nil {
			return fmt.Errorf("touch chat: %w", err)
		}
	}

	e.bus.Publish(bus.E(bus.KindMessageEdited, map[string]string{
		"chat_id": chatID,
		"msg_id":  msgID,
	}))
	return nil
}

// IngestChat upserts a chat summary from the wire, preserving local-only
// flags such as pinned and muted.
func (e *Engine) IngestChat(c *rest.Chat) error {
	if err := e.upsertWireChat(c); err != nil {
		return err
	}
	e.bus.Publish(bus.E(bus.KindChatUpserted, c.ID))
	return nil
}

func (e *Engine) upsertWireChat(c *rest.Chat) error {
	existing, err := e.db.GetChat(c.ID)
	if err != nil {
		return fmt.Errorf("lookup chat: %w", err)
	}

	chat := chatFromWire(c)
	if existing != nil {
		chat.IsPinned = existing.IsPinned
		chat.IsMuted = existing.IsMuted
	}
	if err := e.db.UpsertChat(chat); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	if len(c.Participants) > 0 {
		if err := e.db.ReplaceParticipants(c.ID, participantsFromWire(c)); err != nil {
			return fmt.Errorf("replace participants: %w", err)
		}
	}
	return nil
}

// refresh pulls the full chat list and recent history after a
// (re)connect, then reports the client ready.
func (e *Engine) refresh(ctx context.Context) {
	if e.backend == nil {
		e.transition(status.Ready)
		return
	}

	started := time.Now()
	chats, err := e.backend.ListChats(ctx)
	if err != nil {
		e.logger.Error("chat list pull failed", zap.Error(err))
		e.transition(status.Degraded)
		return
	}

	msgCount := 0
	for _, c := range chats {
		c := c
		if err := e.upsertWireChat(&c); err != nil {
			e.logger.Error("chat ingest failed", zap.Error(err), zap.String("chat_id", c.ID))
			continue
		}
		msgs, err := e.backend.ListMessages(ctx, c.ID, 50)
		if err != nil {
			e.logger.Warn("history pull failed", zap.Error(err), zap.String("chat_id", c.ID))
			continue
		}
		for _, wm := range msgs {
			wm := wm
			if err := e.ingest(messageFromWire(&wm, e.selfID), false); err != nil {
				e.logger.Error("message ingest failed", zap.Error(err), zap.String("msg_id", wm.ID))
			}
		}
		msgCount += len(msgs)
	}

	e.logger.Info("refresh complete",
		zap.Int("chats", len(chats)),
		zap.Int("messages", msgCount),
		zap.Duration("took", time.Since(started)))
	e.transition(status.Ready)
}

func (e *Engine) transition(to status.State) {
	if e.sm == nil {
		return
	}
	if err := e.sm.Transition(to); err != nil {
		e.logger.Debug("state transition skipped", zap.Error(err))
	}
}

// reconciledStatus merges an incoming wire status into the locally
// known one. Anything that is not a forward step through the delivery
// chain keeps the local value.
func reconciledStatus(cur, incoming delivery.Status) delivery.Status {
	steps, err := delivery.Path(cur, incoming)
	if err != nil || len(steps) == 0 {
		return cur
	}
	return steps[len(steps)-1]
}

// truncate caps s at maxLen runes, never splitting a multi-byte
// character.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
