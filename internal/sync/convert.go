package sync

import (
	"github.com/dkzef/chirp/internal/delivery"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/store"
)

func messageFromWire(m *rest.Message, selfID string) *store.Message {
	msgType := m.Type
	if msgType == "" {
		msgType = store.TypeText
	}
	st := delivery.Status(m.Status)
	if !delivery.Known(st) {
		st = delivery.Sent
	}
	return &store.Message{
		ChatID:      m.ChatID,
		MsgID:       m.ID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Body:        m.Content,
		MessageType: msgType,
		FromMe:      selfID != "" && m.SenderID == selfID,
		Status:      st,
		Edited:      m.Edited,
		Timestamp:   m.Timestamp,
	}
}

func chatFromWire(c *rest.Chat) *store.Chat {
	chat := &store.Chat{
		ID:          c.ID,
		Name:        c.Name,
		IsGroup:     c.IsGroup,
		UnreadCount: c.UnreadCount,
	}
	if lm := c.LastMessage; lm != nil {
		chat.LastMessageAt = lm.Timestamp
		chat.LastMessagePreview = truncate(lm.Content, previewLen)
		chat.LastMessageType = lm.Type
		chat.LastMessageSender = lm.SenderName
		chat.LastMessageStatus = lm.Status
	}
	return chat
}

func participantsFromWire(c *rest.Chat) []store.Participant {
	out := make([]store.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		out = append(out, store.Participant{
			ChatID:    c.ID,
			UserID:    p.ID,
			Name:      p.Name,
			AvatarURL: p.AvatarURL,
		})
	}
	return out
}
