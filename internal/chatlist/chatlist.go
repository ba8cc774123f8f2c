// Package chatlist derives what the conversation list shows from cached
// chat summaries: display names, preview lines, filtering, ordering, and
// relative timestamps.
package chatlist

import (
	"sort"
	"strings"
	"time"

	"github.com/dkzef/chirp/internal/store"
)

// FilterMode selects which chats the list shows.
type FilterMode string

const (
	ModeAll    FilterMode = "all"
	ModeUnread FilterMode = "unread"
	ModePinned FilterMode = "pinned"
)

// Modes cycles in the order the list toggles through them.
var Modes = []FilterMode{ModeAll, ModeUnread, ModePinned}

// NextMode returns the mode after m in the toggle cycle.
func NextMode(m FilterMode) FilterMode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeAll
}

// DisplayName returns what the list shows as the chat's title. The store
// already falls back to the other participant's name for unnamed direct
// chats, so only the final placeholder lives here.
func DisplayName(c *store.Chat) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if c.IsGroup {
		return "Unnamed group"
	}
	return "Unknown contact"
}

// PreviewText returns the one-line summary under the chat title. Media
// messages show a type marker instead of their payload, and group chats
// prefix the sender's name.
func PreviewText(c *store.Chat) string {
	if c.LastMessageAt == 0 {
		return "No messages yet"
	}

	var body string
	switch c.LastMessageType {
	case store.TypeImage:
		body = "📷 Photo"
	case store.TypeVideo:
		body = "🎥 Video"
	case store.TypeAudio:
		body = "🎤 Voice message"
	case store.TypeFile:
		body = "📎 File"
	case store.TypeCall:
		body = "📞 Call"
	default:
		body = c.LastMessagePreview
	}

	if c.IsGroup && c.LastMessageSender != "" {
		return c.LastMessageSender + ": " + body
	}
	return body
}

// Filter returns the chats matching both the query and the mode. The
// query matches the display name case-insensitively; mode and query
// compose with AND.
func Filter(chats []store.Chat, query string, mode FilterMode) []store.Chat {
	query = strings.ToLower(strings.TrimSpace(query))

	var out []store.Chat
	for _, c := range chats {
		switch mode {
		case ModeUnread:
			if c.UnreadCount == 0 {
				continue
			}
		case ModePinned:
			if !c.IsPinned {
				continue
			}
		}
		if query != "" && !strings.Contains(strings.ToLower(DisplayName(&c)), query) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Sort orders chats pinned-first, then by last message time descending.
// The sort is stable so equal chats keep their incoming order.
func Sort(chats []store.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].IsPinned != chats[j].IsPinned {
			return chats[i].IsPinned
		}
		return chats[i].LastMessageAt > chats[j].LastMessageAt
	})
}

// FormatTimestamp renders a message time relative to now: clock time for
// today, "Yesterday", the weekday inside a week, and month + day beyond
// that.
func FormatTimestamp(tsMillis int64, now time.Time) string {
	if tsMillis <= 0 {
		return ""
	}
	ts := time.UnixMilli(tsMillis).In(now.Location())

	y1, m1, d1 := ts.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return ts.Format("15:04")
	}

	startOfToday := time.Date(y2, m2, d2, 0, 0, 0, 0, now.Location())
	daysAgo := int(startOfToday.Sub(ts)/(24*time.Hour)) + 1
	switch {
	case daysAgo == 1:
		return "Yesterday"
	case daysAgo < 7:
		return ts.Format("Monday")
	default:
		return ts.Format("Jan 2")
	}
}
