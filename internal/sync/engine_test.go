package sync

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/delivery"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testEngine(t *testing.T, db *store.DB, b *bus.Bus) *Engine {
	t.Helper()
	return NewEngine(db, b, nil, nil, "me", zap.NewNop())
}

func TestEngineIngestMessage(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := testEngine(t, db, b)

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	msg := &store.Message{
		ChatID: "c1", MsgID: "m1", SenderID: "other", Body: "hello",
		MessageType: "text", Status: delivery.Sent, Timestamp: 1000,
	}
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}

	chat, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if chat == nil {
		t.Fatal("chat not created")
	}
	if chat.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 for an incoming message", chat.UnreadCount)
	}
	if chat.LastMessagePreview != "hello" {
		t.Errorf("preview = %q, want hello", chat.LastMessagePreview)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Errorf("got %d messages, want exactly the ingested one", len(msgs))
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindMessageUpserted {
			t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindMessageUpserted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.upserted event")
	}
}

func TestEngineIngestReplayDoesNotBumpUnread(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	msg := &store.Message{
		ChatID: "c1", MsgID: "m1", SenderID: "other", Body: "hello",
		Status: delivery.Sent, Timestamp: 1000,
	}
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}

	chat, _ := db.GetChat("c1")
	if chat.UnreadCount != 1 {
		t.Errorf("unread = %d after replay, want 1", chat.UnreadCount)
	}
}

func TestEngineIngestOwnMessageKeepsUnreadZero(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	msg := &store.Message{
		ChatID: "c1", MsgID: "m1", SenderID: "me", FromMe: true,
		Body: "hi", Status: delivery.Sent, Timestamp: 1000,
	}
	if err := e.IngestMessage(msg); err != nil {
		t.Fatal(err)
	}

	chat, _ := db.GetChat("c1")
	if chat.UnreadCount != 0 {
		t.Errorf("unread = %d for own message, want 0", chat.UnreadCount)
	}
}

func TestApplyStatusFillsSkippedSteps(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := testEngine(t, db, b)

	seed := &store.Message{ChatID: "c1", MsgID: "m1", FromMe: true, Status: delivery.Sent, Timestamp: 1000}
	if err := e.IngestMessage(seed); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(bus.KindMessageStatusChanged, 10)
	defer unsub()

	// A seen ack on a sent message must pass through delivered.
	if err := e.ApplyStatus("c1", "m1", delivery.Seen); err != nil {
		t.Fatal(err)
	}

	var steps []delivery.Status
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			steps = append(steps, evt.Payload.(delivery.Change).To)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got steps %v", steps)
		}
	}
	if len(steps) != 2 || steps[0] != delivery.Delivered || steps[1] != delivery.Seen {
		t.Errorf("steps = %v, want [delivered seen]", steps)
	}

	got, _ := db.GetMessage("m1")
	if got.Status != delivery.Seen {
		t.Errorf("status = %q, want seen", got.Status)
	}
	chat, _ := db.GetChat("c1")
	if chat.LastMessageStatus != string(delivery.Seen) {
		t.Errorf("chat snapshot status = %q, want seen", chat.LastMessageStatus)
	}
}

func TestApplyStatusNeverRegresses(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	seed := &store.Message{ChatID: "c1", MsgID: "m1", FromMe: true, Status: delivery.Sent, Timestamp: 1000}
	if err := e.IngestMessage(seed); err != nil {
		t.Fatal(err)
	}

	// Acks arriving in the wrong order must still end at seen.
	for _, target := range []delivery.Status{delivery.Seen, delivery.Delivered, delivery.Sent} {
		if err := e.ApplyStatus("c1", "m1", target); err != nil {
			t.Fatalf("ApplyStatus(%s): %v", target, err)
		}
	}

	got, _ := db.GetMessage("m1")
	if got.Status != delivery.Seen {
		t.Errorf("status = %q, want seen", got.Status)
	}
}

func TestApplyStatusUnknownMessageDropped(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	if err := e.ApplyStatus("c1", "ghost", delivery.Delivered); err != nil {
		t.Errorf("unknown message should be dropped silently, got %v", err)
	}
}

func TestApplyEdit(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	seed := &store.Message{ChatID: "c1", MsgID: "m1", Status: delivery.Delivered, Body: "helo", Timestamp: 1000}
	if err := e.IngestMessage(seed); err != nil {
		t.Fatal(err)
	}

	if err := e.ApplyEdit("c1", "m1", "hello"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetMessage("m1")
	if got.Body != "hello" || !got.Edited {
		t.Errorf("got body=%q edited=%v, want hello/true", got.Body, got.Edited)
	}
	chat, _ := db.GetChat("c1")
	if chat.LastMessagePreview != "hello" {
		t.Errorf("preview = %q, want edited body", chat.LastMessagePreview)
	}
}

func TestApplyEditUnsentMessageDropped(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	seed := &store.Message{ChatID: "c1", MsgID: "m1", Status: delivery.Sending, Body: "draft", Timestamp: 1000}
	if err := db.UpsertMessage(seed); err != nil {
		t.Fatal(err)
	}

	if err := e.ApplyEdit("c1", "m1", "changed"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetMessage("m1")
	if got.Body != "draft" || got.Edited {
		t.Errorf("unacknowledged message must not be edited, got %+v", got)
	}
}

func TestIngestChatPreservesLocalFlags(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	if err := e.IngestChat(&rest.Chat{ID: "c1", Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetChatPinned("c1", true); err != nil {
		t.Fatal(err)
	}

	if err := e.IngestChat(&rest.Chat{ID: "c1", Name: "Ana Souza"}); err != nil {
		t.Fatal(err)
	}
	chat, _ := db.GetChat("c1")
	if chat.Name != "Ana Souza" {
		t.Errorf("name = %q, want updated", chat.Name)
	}
	if !chat.IsPinned {
		t.Error("pinned flag must survive a server chat update")
	}
}

type fakeBackend struct {
	chats []rest.Chat
	msgs  map[string][]rest.Message
}

func (f *fakeBackend) ListChats(context.Context) ([]rest.Chat, error) {
	return f.chats, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, chatID string, _ int) ([]rest.Message, error) {
	return f.msgs[chatID], nil
}

func TestRefreshPullsChatsAndHistory(t *testing.T) {
	db := testDB(t)
	backend := &fakeBackend{
		chats: []rest.Chat{{ID: "c1", Name: "Ana"}},
		msgs: map[string][]rest.Message{
			"c1": {
				{ID: "m1", ChatID: "c1", SenderID: "other", Content: "hi", Status: "sent", Timestamp: 1000},
				{ID: "m2", ChatID: "c1", SenderID: "me", Content: "hey", Status: "seen", Timestamp: 2000},
			},
		},
	}
	e := NewEngine(db, bus.New(), nil, backend, "me", zap.NewNop())

	e.refresh(context.Background())

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[0].FromMe {
		t.Error("message from self should be marked FromMe")
	}
}

func TestReingestedFrameKeepsAdvancedStatus(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	wire := &rest.Message{
		ID: "m1", ChatID: "c1", SenderID: "me", Content: "hello",
		Status: "sent", Timestamp: 1000,
	}
	if err := e.IngestMessage(messageFromWire(wire, "me")); err != nil {
		t.Fatal(err)
	}
	if err := e.ApplyStatus("c1", "m1", delivery.Seen); err != nil {
		t.Fatal(err)
	}

	// After a reconnect the stream redelivers the frame, still carrying
	// the status it had when first serialized.
	if err := e.IngestMessage(messageFromWire(wire, "me")); err != nil {
		t.Fatal(err)
	}

	msg, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != delivery.Seen {
		t.Errorf("status = %q, want %q after replay", msg.Status, delivery.Seen)
	}
	chat, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if chat.LastMessageStatus != string(delivery.Seen) {
		t.Errorf("chat snapshot status = %q, want %q", chat.LastMessageStatus, delivery.Seen)
	}
}

func TestReingestedFrameStillAdvancesStatus(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	if err := e.IngestMessage(messageFromWire(&rest.Message{
		ID: "m1", ChatID: "c1", SenderID: "me", Content: "hello",
		Status: "sent", Timestamp: 1000,
	}, "me")); err != nil {
		t.Fatal(err)
	}

	// A later frame for the same message may carry a newer status.
	if err := e.IngestMessage(messageFromWire(&rest.Message{
		ID: "m1", ChatID: "c1", SenderID: "me", Content: "hello",
		Status: "delivered", Timestamp: 1000,
	}, "me")); err != nil {
		t.Fatal(err)
	}

	msg, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != delivery.Delivered {
		t.Errorf("status = %q, want %q", msg.Status, delivery.Delivered)
	}
}

func TestRefreshKeepsServerUnreadCount(t *testing.T) {
	db := testDB(t)
	backend := &fakeBackend{
		chats: []rest.Chat{{ID: "c1", Name: "Ana", UnreadCount: 1}},
		msgs: map[string][]rest.Message{
			"c1": {
				{ID: "m1", ChatID: "c1", SenderID: "other", Content: "hi", Status: "sent", Timestamp: 1000},
			},
		},
	}
	e := NewEngine(db, bus.New(), nil, backend, "me", zap.NewNop())

	e.refresh(context.Background())

	chat, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	// The pulled history contains the same message the server already
	// counted; the counter must not be bumped a second time.
	if chat.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 (server count is authoritative during refresh)", chat.UnreadCount)
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	db := testDB(t)
	e := testEngine(t, db, bus.New())

	if err := e.IngestMessage(&store.Message{
		ChatID: "c1", MsgID: "m1", SenderID: "other",
		Body: strings.Repeat("é", 120), MessageType: "text",
		Status: delivery.Sent, Timestamp: 1000,
	}); err != nil {
		t.Fatal(err)
	}

	chat, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if !utf8.ValidString(chat.LastMessagePreview) {
		t.Error("preview is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(chat.LastMessagePreview); got != 100 {
		t.Errorf("preview runes = %d, want 100", got)
	}
}
