package rest

// Wire types shared by the client, the event stream, and the dev stub
// server. Timestamps are unix milliseconds.

// Chat is a conversation summary as the backend reports it.
type Chat struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	IsGroup      bool          `json:"is_group"`
	UnreadCount  int           `json:"unread_count"`
	Participants []Participant `json:"participants,omitempty"`
	LastMessage  *Message      `json:"last_message,omitempty"`
}

// Participant is a chat member.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Message is a chat message on the wire.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Edited     bool   `json:"edited"`
	Timestamp  int64  `json:"timestamp"`
}

// SendRequest is the body of POST /v1/chats/{id}/messages. ClientMsgID
// lets the backend deduplicate retries of the same send.
type SendRequest struct {
	ClientMsgID string `json:"client_msg_id"`
	Content     string `json:"content"`
	Type        string `json:"type"`
}

// TypingRequest is the body of POST /v1/chats/{id}/typing.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// Envelope kinds pushed on /v1/stream.
const (
	KindMessageNew    = "message.new"
	KindMessageStatus = "message.status"
	KindMessageEdited = "message.edited"
	KindChatUpdate    = "chat.update"
	KindTyping        = "typing"
)

// Envelope is one event frame on the /v1/stream WebSocket. Which fields
// are set depends on Kind.
type Envelope struct {
	Kind      string   `json:"kind"`
	ChatID    string   `json:"chat_id"`
	MessageID string   `json:"message_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Content   string   `json:"content,omitempty"`
	IsTyping  bool     `json:"is_typing,omitempty"`
	SenderID  string   `json:"sender_id,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Chat      *Chat    `json:"chat,omitempty"`
}
