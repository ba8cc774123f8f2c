// Package model holds the TUI's view state, loaded from the local store
// so the interface renders without waiting on the network.
package model

import (
	"sync"
	"time"

	"github.com/dkzef/chirp/internal/chatlist"
	"github.com/dkzef/chirp/internal/store"
)

// typingTTL is how long a peer's typing indicator stays up without a
// fresh signal.
const typingTTL = 5 * time.Second

// ViewModel caches store state for the views and tracks UI-only state
// such as the active chat and the list filter.
type ViewModel struct {
	mu sync.RWMutex

	db           *store.DB
	selfID       string
	chats        []store.Chat
	messages     []store.Message
	activeChatID string
	query        string
	mode         chatlist.FilterMode
	typing       map[string]time.Time // chatID -> expiry

	Flash Flash
}

// NewViewModel creates a view model backed by the local store.
func NewViewModel(db *store.DB, selfID string) *ViewModel {
	return &ViewModel{
		db:     db,
		selfID: selfID,
		mode:   chatlist.ModeAll,
		typing: make(map[string]time.Time),
	}
}

// LoadChats refreshes the cached chat list from the store.
func (vm *ViewModel) LoadChats() error {
	chats, err := vm.db.ListChats(vm.selfID, 200, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chats = chats
	vm.mu.Unlock()
	return nil
}

// LoadMessages refreshes the cached thread for a chat and makes it the
// active one. Messages are kept oldest first for rendering.
func (vm *ViewModel) LoadMessages(chatID string) error {
	msgs, err := vm.db.ListMessages(chatID, 0, 100)
	if err != nil {
		return err
	}
	// The store returns newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	vm.mu.Lock()
	vm.activeChatID = chatID
	vm.messages = msgs
	vm.mu.Unlock()
	return nil
}

// Chats returns the chats to render: filtered by the current query and
// mode, pinned first.
func (vm *ViewModel) Chats() []store.Chat {
	vm.mu.RLock()
	chats := append([]store.Chat(nil), vm.chats...)
	query, mode := vm.query, vm.mode
	vm.mu.RUnlock()

	out := chatlist.Filter(chats, query, mode)
	chatlist.Sort(out)
	return out
}

// Messages returns the active thread, oldest first.
func (vm *ViewModel) Messages() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// ActiveChatID returns the open chat, or empty on the list page.
func (vm *ViewModel) ActiveChatID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeChatID
}

// ActiveChat returns the open chat's summary, or nil.
func (vm *ViewModel) ActiveChat() *store.Chat {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for i := range vm.chats {
		if vm.chats[i].ID == vm.activeChatID {
			c := vm.chats[i]
			return &c
		}
	}
	return nil
}

// CloseChat leaves the active chat.
func (vm *ViewModel) CloseChat() {
	vm.mu.Lock()
	vm.activeChatID = ""
	vm.messages = nil
	vm.mu.Unlock()
}

// ChatByID returns a cached chat summary, or nil.
func (vm *ViewModel) ChatByID(id string) *store.Chat {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for i := range vm.chats {
		if vm.chats[i].ID == id {
			c := vm.chats[i]
			return &c
		}
	}
	return nil
}

// SetQuery updates the list filter query.
func (vm *ViewModel) SetQuery(q string) {
	vm.mu.Lock()
	vm.query = q
	vm.mu.Unlock()
}

// Query returns the list filter query.
func (vm *ViewModel) Query() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.query
}

// CycleMode advances the filter mode and returns the new one.
func (vm *ViewModel) CycleMode() chatlist.FilterMode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.mode = chatlist.NextMode(vm.mode)
	return vm.mode
}

// Mode returns the current filter mode.
func (vm *ViewModel) Mode() chatlist.FilterMode {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.mode
}

// MarkTyping records that someone is typing in a chat.
func (vm *ViewModel) MarkTyping(chatID string, typing bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if typing {
		vm.typing[chatID] = time.Now().Add(typingTTL)
	} else {
		delete(vm.typing, chatID)
	}
}

// IsTyping reports whether a peer is typing in the chat right now.
func (vm *ViewModel) IsTyping(chatID string) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	expiry, ok := vm.typing[chatID]
	return ok && time.Now().Before(expiry)
}

// Search runs a full text search over cached messages.
func (vm *ViewModel) Search(query string) ([]store.SearchResult, error) {
	return vm.db.SearchMessages(query, 50)
}

// TogglePinned flips the active or given chat's pinned flag.
func (vm *ViewModel) TogglePinned(chatID string) error {
	c := vm.ChatByID(chatID)
	if c == nil {
		return nil
	}
	return vm.db.SetChatPinned(chatID, !c.IsPinned)
}

// ToggleMuted flips a chat's muted flag.
func (vm *ViewModel) ToggleMuted(chatID string) error {
	c := vm.ChatByID(chatID)
	if c == nil {
		return nil
	}
	return vm.db.SetChatMuted(chatID, !c.IsMuted)
}

// MarkRead zeroes a chat's unread counter locally.
func (vm *ViewModel) MarkRead(chatID string) error {
	return vm.db.MarkChatRead(chatID)
}
