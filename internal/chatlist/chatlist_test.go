package chatlist

import (
	"testing"
	"time"

	"github.com/dkzef/chirp/internal/store"
)

func TestDisplayName(t *testing.T) {
	cases := []struct {
		chat store.Chat
		want string
	}{
		{store.Chat{Name: "Ana"}, "Ana"},
		{store.Chat{Name: "  "}, "Unknown contact"},
		{store.Chat{IsGroup: true}, "Unnamed group"},
		{store.Chat{Name: "Design Team", IsGroup: true}, "Design Team"},
	}
	for _, tc := range cases {
		if got := DisplayName(&tc.chat); got != tc.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tc.chat, got, tc.want)
		}
	}
}

func TestPreviewText(t *testing.T) {
	cases := []struct {
		name string
		chat store.Chat
		want string
	}{
		{"empty chat", store.Chat{}, "No messages yet"},
		{"text", store.Chat{LastMessageAt: 1, LastMessageType: store.TypeText, LastMessagePreview: "see you"}, "see you"},
		{"image", store.Chat{LastMessageAt: 1, LastMessageType: store.TypeImage}, "📷 Photo"},
		{"audio", store.Chat{LastMessageAt: 1, LastMessageType: store.TypeAudio}, "🎤 Voice message"},
		{"group prefixes sender", store.Chat{
			IsGroup: true, LastMessageAt: 1, LastMessageType: store.TypeText,
			LastMessageSender: "Bruno", LastMessagePreview: "on my way",
		}, "Bruno: on my way"},
		{"group media", store.Chat{
			IsGroup: true, LastMessageAt: 1, LastMessageType: store.TypeFile,
			LastMessageSender: "Bruno",
		}, "Bruno: 📎 File"},
	}
	for _, tc := range cases {
		if got := PreviewText(&tc.chat); got != tc.want {
			t.Errorf("%s: PreviewText = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func sampleChats() []store.Chat {
	return []store.Chat{
		{ID: "1", Name: "Ana Souza", UnreadCount: 2, LastMessageAt: 300},
		{ID: "2", Name: "Bruno Lima", IsPinned: true, LastMessageAt: 100},
		{ID: "3", Name: "Design Team", IsGroup: true, UnreadCount: 5, IsPinned: true, LastMessageAt: 200},
		{ID: "4", Name: "Carla", LastMessageAt: 400},
	}
}

func idsOf(chats []store.Chat) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ID
	}
	return out
}

func TestFilterByMode(t *testing.T) {
	chats := sampleChats()

	if got := Filter(chats, "", ModeAll); len(got) != 4 {
		t.Errorf("all: %d chats, want 4", len(got))
	}
	if got := idsOf(Filter(chats, "", ModeUnread)); len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("unread: %v, want [1 3]", got)
	}
	if got := idsOf(Filter(chats, "", ModePinned)); len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Errorf("pinned: %v, want [2 3]", got)
	}
}

func TestFilterQueryAndModeCompose(t *testing.T) {
	chats := sampleChats()

	// Query matches case-insensitively.
	if got := idsOf(Filter(chats, "ana", ModeAll)); len(got) != 1 || got[0] != "1" {
		t.Errorf("query ana: %v, want [1]", got)
	}

	// Mode and query are ANDed: "a" matches Ana, Bruno Lima, Design Team
	// and Carla, but only Design Team is both a match and pinned.
	got := idsOf(Filter(chats, "design", ModePinned))
	if len(got) != 1 || got[0] != "3" {
		t.Errorf("pinned+design: %v, want [3]", got)
	}

	// A query that matches nothing in the mode yields an empty list.
	if got := Filter(chats, "carla", ModePinned); len(got) != 0 {
		t.Errorf("pinned+carla: %v, want empty", idsOf(got))
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	chats := sampleChats()
	Filter(chats, "ana", ModeUnread)
	if chats[0].ID != "1" || len(chats) != 4 {
		t.Error("filter must not mutate its input")
	}
}

func TestSortPinnedFirstThenRecency(t *testing.T) {
	chats := sampleChats()
	Sort(chats)

	want := []string{"3", "2", "4", "1"}
	got := idsOf(chats)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestNextMode(t *testing.T) {
	if got := NextMode(ModeAll); got != ModeUnread {
		t.Errorf("after all: %q", got)
	}
	if got := NextMode(ModePinned); got != ModeAll {
		t.Errorf("after pinned: %q", got)
	}
	if got := NextMode(FilterMode("bogus")); got != ModeAll {
		t.Errorf("after bogus: %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	// A fixed Thursday afternoon.
	now := time.Date(2026, time.March, 12, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"same day", time.Date(2026, time.March, 12, 9, 5, 0, 0, time.UTC), "09:05"},
		{"yesterday", time.Date(2026, time.March, 11, 23, 0, 0, 0, time.UTC), "Yesterday"},
		{"two days ago", time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC), "Tuesday"},
		{"six days ago", time.Date(2026, time.March, 6, 12, 0, 0, 0, time.UTC), "Friday"},
		{"seven days ago", time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC), "Mar 5"},
		{"months ago", time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC), "Feb 1"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.ts.UnixMilli(), now); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}

	if got := FormatTimestamp(0, now); got != "" {
		t.Errorf("zero timestamp: got %q, want empty", got)
	}
}
