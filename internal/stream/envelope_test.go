package stream

import (
	"testing"

	"github.com/dkzef/chirp/internal/bus"
)

func TestDecodeEnvelope(t *testing.T) {
	data := []byte(`{
		"kind": "message.new",
		"chat_id": "c1",
		"message": {"id": "m1", "chat_id": "c1", "content": "hi", "status": "sent", "timestamp": 1000}
	}`)

	env, kind, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if kind != bus.KindRemoteMessage {
		t.Errorf("kind = %q, want %q", kind, bus.KindRemoteMessage)
	}
	if env.Message == nil || env.Message.ID != "m1" {
		t.Errorf("message = %+v", env.Message)
	}
}

func TestDecodeEnvelopeStatus(t *testing.T) {
	data := []byte(`{"kind":"message.status","chat_id":"c1","message_id":"m1","status":"seen"}`)

	env, kind, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if kind != bus.KindRemoteStatus || env.Status != "seen" || env.MessageID != "m1" {
		t.Errorf("kind=%q env=%+v", kind, env)
	}
}

func TestDecodeEnvelopeUnknownKind(t *testing.T) {
	env, kind, err := DecodeEnvelope([]byte(`{"kind":"reaction.new","chat_id":"c1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if kind != "" {
		t.Errorf("unknown kind mapped to %q, want empty", kind)
	}
	if env.Kind != "reaction.new" {
		t.Errorf("env.Kind = %q", env.Kind)
	}
}

func TestDecodeEnvelopeRejectsBadFrames(t *testing.T) {
	if _, _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Error("expected error for malformed json")
	}
	if _, _, err := DecodeEnvelope([]byte(`{"kind":"message.new"}`)); err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func TestStreamURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost:8480", "ws://localhost:8480/v1/stream"},
		{"https://chat.example.com", "wss://chat.example.com/v1/stream"},
		{"https://chat.example.com/api/", "wss://chat.example.com/api/v1/stream"},
	}
	for _, tc := range cases {
		got, err := streamURL(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("streamURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
