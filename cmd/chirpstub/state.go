package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkzef/chirp/internal/rest"
)

// state is the stub's in-memory backend. Everything resets on restart.
type state struct {
	mu       sync.Mutex
	chats    map[string]*rest.Chat
	messages map[string][]rest.Message
	nextID   int
}

func newState() *state {
	s := &state{
		chats:    make(map[string]*rest.Chat),
		messages: make(map[string][]rest.Message),
		nextID:   1,
	}
	s.seed()
	return s
}

func (s *state) seed() {
	now := time.Now().UnixMilli()

	alice := rest.Participant{ID: "alice", Name: "Alice Moreira"}
	bruno := rest.Participant{ID: "bruno", Name: "Bruno Costa"}
	self := rest.Participant{ID: "me", Name: "You"}

	s.chats["c-alice"] = &rest.Chat{
		ID:           "c-alice",
		Name:         "Alice Moreira",
		Participants: []rest.Participant{self, alice},
	}
	s.chats["c-team"] = &rest.Chat{
		ID:           "c-team",
		Name:         "Launch Team",
		IsGroup:      true,
		Participants: []rest.Participant{self, alice, bruno},
	}

	s.appendMessage(rest.Message{
		ChatID: "c-alice", SenderID: "alice", SenderName: alice.Name,
		Content: "Did the invoice go out?", Type: "text", Status: "seen",
		Timestamp: now - 3600_000,
	})
	s.appendMessage(rest.Message{
		ChatID: "c-team", SenderID: "bruno", SenderName: bruno.Name,
		Content: "Standup moved to 10:30", Type: "text", Status: "delivered",
		Timestamp: now - 600_000,
	})
	s.chats["c-team"].UnreadCount = 1
}

func (s *state) newID() string {
	id := fmt.Sprintf("srv-%d", s.nextID)
	s.nextID++
	return id
}

// appendMessage assigns an id if missing and updates the chat preview.
// Caller holds no lock; this is only used during seeding and by addMessage.
func (s *state) appendMessage(m rest.Message) rest.Message {
	if m.ID == "" {
		m.ID = s.newID()
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	if c, ok := s.chats[m.ChatID]; ok {
		mm := m
		c.LastMessage = &mm
	}
	return m
}

func (s *state) listChats() []rest.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rest.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) listMessages(chatID string, limit int) []rest.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]rest.Message, len(msgs))
	copy(out, msgs)
	return out
}

// addMessage stores an inbound or sent message and returns the stored copy.
func (s *state) addMessage(m rest.Message) rest.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMessage(m)
}

// setStatus advances a message's recorded status and returns true when
// the message exists.
func (s *state) setStatus(chatID, msgID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == msgID {
			msgs[i].Status = status
			if c, ok := s.chats[chatID]; ok && c.LastMessage != nil && c.LastMessage.ID == msgID {
				c.LastMessage.Status = status
			}
			return true
		}
	}
	return false
}

func (s *state) markRead(chatID string) (*rest.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, false
	}
	c.UnreadCount = 0
	cc := *c
	return &cc, true
}

func (s *state) chatExists(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[chatID]
	return ok
}

// peerFor picks a participant other than the sender to play the remote
// side in simulated replies.
func (s *state) peerFor(chatID string) rest.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		for _, p := range c.Participants {
			if p.ID != "me" {
				return p
			}
		}
	}
	return rest.Participant{ID: "peer", Name: "Peer"}
}
