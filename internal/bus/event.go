package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by chirp components. Subscribers filter by
// namespace prefix, e.g. "message." receives every message event.
const (
	KindMessageUpserted      = "message.upserted"
	KindMessageStatusChanged = "message.status_changed"
	KindMessageSendAck       = "message.send_ack"
	KindMessageSendFailed    = "message.send_failed"
	KindMessageEdited        = "message.edited"

	KindChatUpserted = "chat.upserted"
	KindChatRead     = "chat.read"

	KindStreamConnected    = "stream.connected"
	KindStreamDisconnected = "stream.disconnected"

	// Raw server events, consumed by the sync engine.
	KindRemoteMessage = "remote.message"
	KindRemoteStatus  = "remote.status"
	KindRemoteEdited  = "remote.edited"
	KindRemoteChat    = "remote.chat"
	KindRemoteTyping  = "remote.typing"

	KindSessionStatusChanged = "session.status_changed"

	KindCallRecorded = "call.recorded"
	KindCallsCleared = "call.cleared"
)

// E is shorthand for an event stamped with the current time.
func E(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
