package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/dkzef/chirp/internal/chatlist"
	"github.com/dkzef/chirp/internal/store"
)

// MessageThread renders the open chat's messages oldest first, with
// delivery ticks on own messages and an optional typing line.
type MessageThread struct {
	*tview.TextView
}

// NewMessageThread creates the thread view.
func NewMessageThread() *MessageThread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageThread{TextView: tv}
}

// SetChatName updates the title.
func (mt *MessageThread) SetChatName(name string) {
	mt.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update redraws the thread. msgs must be oldest first.
func (mt *MessageThread) Update(msgs []store.Message, peerTyping bool) {
	mt.Clear()
	now := time.Now()

	for i := range msgs {
		m := &msgs[i]

		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.FromMe {
			sender = "You"
		}

		body := m.Body
		if marker := mediaMarker(m.MessageType); marker != "" {
			body = marker
		}
		body = sanitizeForTerminal(body)
		if m.Edited {
			body += " [gray](edited)[-]"
		}

		meta := chatlist.FormatTimestamp(m.Timestamp, now)
		if m.FromMe {
			meta += " " + statusIndicator(m.Status)
		}

		fmt.Fprintf(mt, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(sender), meta, body)
	}

	if peerTyping {
		fmt.Fprint(mt, "[green::d]typing…[-:-:-]\n")
	}

	mt.ScrollToEnd()
}
