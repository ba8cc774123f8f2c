package stream

import (
	"encoding/json"
	"fmt"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/rest"
)

// busKinds maps wire envelope kinds to the bus kinds the sync engine
// subscribes to.
var busKinds = map[string]string{
	rest.KindMessageNew:    bus.KindRemoteMessage,
	rest.KindMessageStatus: bus.KindRemoteStatus,
	rest.KindMessageEdited: bus.KindRemoteEdited,
	rest.KindChatUpdate:    bus.KindRemoteChat,
	rest.KindTyping:        bus.KindRemoteTyping,
}

// DecodeEnvelope parses one stream frame. The returned bus kind is empty
// when the wire kind is not one this client understands.
func DecodeEnvelope(data []byte) (rest.Envelope, string, error) {
	var env rest.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.ChatID == "" {
		return env, "", fmt.Errorf("envelope %q missing chat_id", env.Kind)
	}
	return env, busKinds[env.Kind], nil
}
