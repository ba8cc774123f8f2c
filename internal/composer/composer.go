// Package composer implements message composition for the active chat:
// text and attachment submission, the voice recording lifecycle, and the
// typing indicator debounce.
package composer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/store"
)

// typingIdle is how long after the last keystroke the typing indicator
// is withdrawn.
const typingIdle = 3 * time.Second

// maxAttachmentSize caps inline attachments.
const maxAttachmentSize = 16 << 20

// Outbox is where finished compositions go.
type Outbox interface {
	Enqueue(chatID, body, messageType string) (*store.Message, error)
}

// TypingSignaler reports the user's typing state to the backend.
type TypingSignaler interface {
	SendTyping(ctx context.Context, chatID string, typing bool) error
}

// Composer drives composition for one chat at a time.
type Composer struct {
	outbox   Outbox
	typing   TypingSignaler
	recorder Recorder
	logger   *zap.Logger

	mu          sync.Mutex
	chatID      string
	isTyping    bool
	typingTimer *time.Timer
	rec         *recordingState
}

// New creates a composer. recorder may be nil when no audio capture is
// available; recording then fails with ErrNoRecorder.
func New(outbox Outbox, typing TypingSignaler, recorder Recorder, logger *zap.Logger) *Composer {
	return &Composer{
		outbox:   outbox,
		typing:   typing,
		recorder: recorder,
		logger:   logger.Named("composer"),
	}
}

// SetChat switches the active chat, discarding any in-flight recording
// and withdrawing the typing indicator for the previous chat.
func (c *Composer) SetChat(chatID string) {
	c.mu.Lock()
	prev := c.chatID
	wasTyping := c.isTyping
	c.chatID = chatID
	c.isTyping = false
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	c.CancelRecording()
	if wasTyping && prev != "" {
		c.signalTyping(prev, false)
	}
}

// SubmitText queues the composed text. Leading and trailing whitespace is
// stripped; an empty result is a no-op and returns nil, nil. Emoji
// shortcodes like :wave: are expanded before the text leaves the client.
func (c *Composer) SubmitText(text string) (*store.Message, error) {
	chatID := c.activeChat()
	if chatID == "" {
		return nil, fmt.Errorf("no active chat")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	text = ExpandShortcodes(text)

	c.stopTyping(chatID)
	return c.outbox.Enqueue(chatID, text, store.TypeText)
}

// SubmitAttachment reads a local file and queues it as an attachment.
// The message type is derived from the file extension.
func (c *Composer) SubmitAttachment(path string) (*store.Message, error) {
	chatID := c.activeChat()
	if chatID == "" {
		return nil, fmt.Errorf("no active chat")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	if info.Size() > maxAttachmentSize {
		return nil, fmt.Errorf("attachment %s too large (%d bytes)", filepath.Base(path), info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}

	body := encodeAttachment(filepath.Base(path), data)
	return c.outbox.Enqueue(chatID, body, attachmentType(path))
}

// NotifyTyping records a keystroke. The first keystroke signals
// typing=true; further keystrokes only push back the 3 second timer that
// eventually signals typing=false.
func (c *Composer) NotifyTyping() {
	c.mu.Lock()
	chatID := c.chatID
	if chatID == "" {
		c.mu.Unlock()
		return
	}

	first := !c.isTyping
	c.isTyping = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(typingIdle, func() {
		c.mu.Lock()
		expired := c.isTyping && c.chatID == chatID
		if expired {
			c.isTyping = false
		}
		c.mu.Unlock()
		if expired {
			c.signalTyping(chatID, false)
		}
	})
	c.mu.Unlock()

	if first {
		c.signalTyping(chatID, true)
	}
}

// Close discards any in-flight recording and withdraws the typing
// indicator.
func (c *Composer) Close() {
	c.CancelRecording()

	c.mu.Lock()
	chatID := c.chatID
	wasTyping := c.isTyping
	c.isTyping = false
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	if wasTyping && chatID != "" {
		c.signalTyping(chatID, false)
	}
}

func (c *Composer) activeChat() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// stopTyping withdraws the indicator immediately, as submitting a message
// implies the user is done typing.
func (c *Composer) stopTyping(chatID string) {
	c.mu.Lock()
	wasTyping := c.isTyping
	c.isTyping = false
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	if wasTyping {
		c.signalTyping(chatID, false)
	}
}

func (c *Composer) signalTyping(chatID string, typing bool) {
	if c.typing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.typing.SendTyping(ctx, chatID, typing); err != nil {
		// Typing is cosmetic; losing a signal is not worth surfacing.
		c.logger.Debug("typing signal failed", zap.Error(err), zap.Bool("typing", typing))
	}
}

func encodeAttachment(name string, data []byte) string {
	return name + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func attachmentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return store.TypeImage
	case ".mp4", ".mov", ".webm":
		return store.TypeVideo
	case ".ogg", ".mp3", ".m4a", ".wav", ".opus":
		return store.TypeAudio
	default:
		return store.TypeFile
	}
}
