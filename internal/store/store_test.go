package store

import (
	"path/filepath"
	"testing"

	"github.com/dkzef/chirp/internal/delivery"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate once.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestUpsertChatIsIdempotent(t *testing.T) {
	db := testDB(t)

	c := &Chat{ID: "c1", Name: "Ana", LastMessageAt: 1000, LastMessagePreview: "hi"}
	if err := db.UpsertChat(c); err != nil {
		t.Fatal(err)
	}
	c.Name = "Ana Souza"
	c.UnreadCount = 3
	if err := db.UpsertChat(c); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("chat not found after upsert")
	}
	if got.Name != "Ana Souza" || got.UnreadCount != 3 {
		t.Errorf("got %+v, want updated name and unread", got)
	}
}

func TestListChatsPinnedFirstThenRecency(t *testing.T) {
	db := testDB(t)

	chats := []*Chat{
		{ID: "old", Name: "Old", LastMessageAt: 100},
		{ID: "new", Name: "New", LastMessageAt: 300},
		{ID: "pinned", Name: "Pinned", LastMessageAt: 200, IsPinned: true},
	}
	for _, c := range chats {
		if err := db.UpsertChat(c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListChats("me", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	want := []string{"pinned", "new", "old"}
	for i := range want {
		if i >= len(ids) || ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestListChatsDirectNameFallsBackToParticipant(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertChat(&Chat{ID: "d1", LastMessageAt: 100}); err != nil {
		t.Fatal(err)
	}
	members := []Participant{
		{UserID: "me", Name: "Me"},
		{UserID: "u2", Name: "Bruno"},
	}
	if err := db.ReplaceParticipants("d1", members); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListChats("me", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d chats, want 1", len(got))
	}
	if got[0].Name != "Bruno" {
		t.Errorf("name = %q, want fallback to other participant %q", got[0].Name, "Bruno")
	}
}

func TestTouchChatLastMessageIgnoresOlderSnapshots(t *testing.T) {
	db := testDB(t)

	newest := &Message{ChatID: "c1", MsgID: "m2", SenderName: "Ana", MessageType: TypeText, Status: delivery.Sent, Timestamp: 2000}
	if err := db.TouchChatLastMessage(newest, "newest"); err != nil {
		t.Fatal(err)
	}
	// Backfilled history must not overwrite the newer snapshot.
	older := &Message{ChatID: "c1", MsgID: "m1", SenderName: "Ana", MessageType: TypeText, Status: delivery.Seen, Timestamp: 1000}
	if err := db.TouchChatLastMessage(older, "older"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessagePreview != "newest" || got.LastMessageAt != 2000 {
		t.Errorf("snapshot = %q@%d, want newest@2000", got.LastMessagePreview, got.LastMessageAt)
	}
}

func TestTouchChatLastMessagePreservesFlags(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertChat(&Chat{ID: "c1", Name: "Ana"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetChatPinned("c1", true); err != nil {
		t.Fatal(err)
	}
	if err := db.IncrementUnread("c1"); err != nil {
		t.Fatal(err)
	}

	m := &Message{ChatID: "c1", MsgID: "m1", MessageType: TypeText, Timestamp: 500}
	if err := db.TouchChatLastMessage(m, "hi"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsPinned || got.UnreadCount != 1 {
		t.Errorf("pinned=%v unread=%d, want flags preserved", got.IsPinned, got.UnreadCount)
	}
}

func TestUnreadCounter(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertChat(&Chat{ID: "c1"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := db.IncrementUnread("c1"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := db.GetChat("c1")
	if got.UnreadCount != 3 {
		t.Fatalf("unread = %d, want 3", got.UnreadCount)
	}

	if err := db.MarkChatRead("c1"); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetChat("c1")
	if got.UnreadCount != 0 {
		t.Errorf("unread after read = %d, want 0", got.UnreadCount)
	}
}

func TestUpsertMessageIsIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ChatID: "c1", MsgID: "m1", Body: "hello", MessageType: TypeText, Status: delivery.Sent, Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Status = delivery.Delivered
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Status != delivery.Delivered {
		t.Errorf("status = %q, want delivered", msgs[0].Status)
	}
}

func TestListMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)

	for i, ts := range []int64{1000, 2000, 3000} {
		m := &Message{ChatID: "c1", MsgID: string(rune('a' + i)), Timestamp: ts}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	page, err := db.ListMessages("c1", 3000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d messages before ts=3000, want 2", len(page))
	}
	if page[0].Timestamp != 2000 {
		t.Errorf("first = %d, want newest-first 2000", page[0].Timestamp)
	}
}

func TestReconcileMessageID(t *testing.T) {
	db := testDB(t)

	m := &Message{ChatID: "c1", MsgID: "client-1", FromMe: true, Status: delivery.Sending, Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	if err := db.ReconcileMessageID("client-1", "srv-42", delivery.Sent); err != nil {
		t.Fatal(err)
	}

	if got, _ := db.GetMessage("client-1"); got != nil {
		t.Error("client id should be gone after reconciliation")
	}
	got, err := db.GetMessage("srv-42")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("server id not found after reconciliation")
	}
	if got.Status != delivery.Sent {
		t.Errorf("status = %q, want sent", got.Status)
	}

	if err := db.ReconcileMessageID("client-1", "srv-43", delivery.Sent); err == nil {
		t.Error("reconciling an unknown client id should fail")
	}
}

func TestSetMessageStatusUnknownID(t *testing.T) {
	db := testDB(t)

	if err := db.SetMessageStatus("ghost", delivery.Delivered); err == nil {
		t.Error("expected error for unknown message id")
	}
}

func TestMarkMessageEdited(t *testing.T) {
	db := testDB(t)

	m := &Message{ChatID: "c1", MsgID: "m1", Body: "helo", Status: delivery.Sent, Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessageEdited("m1", "hello"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "hello" || !got.Edited {
		t.Errorf("got body=%q edited=%v, want hello/true", got.Body, got.Edited)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("cid-1", "c1", "hello", TypeText); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != "cid-1" {
		t.Fatalf("pending = %+v, want the queued entry", pending)
	}

	if err := db.MarkOutboxSending("cid-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("cid-1", "srv-1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sent = %d entries, want 0", len(pending))
	}
}

func TestOutboxRequeueOnlyTouchesFailed(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("cid-1", "c1", "a", TypeText); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("cid-2", "c1", "b", TypeText); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSending("cid-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("cid-1", "connection reset"); err != nil {
		t.Fatal(err)
	}

	failed, err := db.FailedOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Attempts != 1 || failed[0].ErrorMessage != "connection reset" {
		t.Fatalf("failed = %+v, want single entry with attempt count and error", failed)
	}

	// Requeueing an entry that is not failed is a no-op.
	ok, err := db.RequeueOutbox("cid-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("requeue of a queued entry should report false")
	}

	ok, err = db.RequeueOutbox("cid-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("requeue of a failed entry should report true")
	}
	pending, _ := db.PendingOutbox()
	if len(pending) != 2 {
		t.Errorf("pending = %d entries, want 2 after requeue", len(pending))
	}
}

func TestRequeueAllFailed(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"cid-1", "cid-2", "cid-3"} {
		if err := db.QueueOutbox(id, "c1", "x", TypeText); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.MarkOutboxFailed("cid-1", "timeout"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed("cid-3", "timeout"); err != nil {
		t.Fatal(err)
	}

	n, err := db.RequeueAllFailed()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("requeued %d, want 2", n)
	}
	failed, _ := db.FailedOutbox()
	if len(failed) != 0 {
		t.Errorf("failed after requeue-all = %d, want 0", len(failed))
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	msgs := []*Message{
		{ChatID: "c1", MsgID: "m1", Body: "invoice for the logo project", Timestamp: 1000},
		{ChatID: "c1", MsgID: "m2", Body: "see you tomorrow", Timestamp: 2000},
		{ChatID: "c2", MsgID: "m3", Body: "updated invoice attached", Timestamp: 3000},
	}
	for _, m := range msgs {
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchMessages("invoice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Message.MsgID != "m3" {
		t.Errorf("first result = %s, want newest m3", results[0].Message.MsgID)
	}

	if results, _ = db.SearchMessages("   ", 10); results != nil {
		t.Error("blank query should return nil")
	}
}

func TestSearchIndexFollowsEdits(t *testing.T) {
	db := testDB(t)

	m := &Message{ChatID: "c1", MsgID: "m1", Body: "draft", Status: delivery.Sent, Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessageEdited("m1", "final contract"); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("contract", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want edited body indexed", len(results))
	}
	if results, _ = db.SearchMessages("draft", 10); len(results) != 0 {
		t.Error("old body should be gone from the index")
	}
}
