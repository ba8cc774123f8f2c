package store

import "github.com/dkzef/chirp/internal/delivery"

// Message media kinds.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeFile  = "file"
	TypeCall  = "call"
)

// Chat represents a cached conversation summary.
type Chat struct {
	ID                 string
	Name               string
	IsGroup            bool
	IsPinned           bool
	IsMuted            bool
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
	LastMessageType    string
	LastMessageSender  string
	LastMessageStatus  string
}

// Participant represents a chat member.
type Participant struct {
	ChatID    string
	UserID    string
	Name      string
	AvatarURL string
}

// Message represents a cached message. MsgID holds the client-local id
// until the send is acknowledged, then the server-assigned id.
type Message struct {
	ID          int64
	ChatID      string
	MsgID       string
	SenderID    string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	Status      delivery.Status
	Edited      bool
	Timestamp   int64
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       string
	Body         string
	MessageType  string
	Status       string // queued, sending, sent, failed
	Attempts     int
	ErrorMessage string
	ServerMsgID  string
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
