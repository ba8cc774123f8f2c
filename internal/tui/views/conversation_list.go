package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/dkzef/chirp/internal/chatlist"
	"github.com/dkzef/chirp/internal/store"
)

// ConversationList is the chat list page: a table of chats plus the
// filter mode in the title.
type ConversationList struct {
	*tview.Table
	chats []store.Chat
}

// NewConversationList creates the chat list table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	return &ConversationList{Table: table}
}

// Update refreshes the table. The title reflects the filter mode and
// query so the user can see why chats are hidden.
func (cl *ConversationList) Update(chats []store.Chat, mode chatlist.FilterMode, query string) {
	cl.chats = chats
	cl.Clear()

	title := " Chats "
	if mode != chatlist.ModeAll {
		title = fmt.Sprintf(" Chats [%s] ", mode)
	}
	if query != "" {
		title += fmt.Sprintf("/%s ", query)
	}
	cl.SetTitle(title)

	cl.SetCell(0, 0, headerCell(" Name"))
	cl.SetCell(0, 1, headerCell(" Last Message"))
	cl.SetCell(0, 2, headerCell(" Time"))

	now := time.Now()
	for i := range chats {
		c := &chats[i]
		row := i + 1

		name := chatlist.DisplayName(c)
		if c.IsPinned {
			name = "📌 " + name
		}
		if c.IsMuted {
			name += " 🔇"
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("[::b]%s (%d)[-:-:-]", name, c.UnreadCount)
		}

		preview := sanitizeForTerminal(chatlist.PreviewText(c))

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(32).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+preview).SetMaxWidth(48).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+chatlist.FormatTimestamp(c.LastMessageAt, now)).SetMaxWidth(12))
	}
}

func headerCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).
		SetSelectable(false).
		SetTextColor(tview.Styles.SecondaryTextColor)
}

// SelectedChat returns the id of the highlighted chat, or empty.
func (cl *ConversationList) SelectedChat() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}
