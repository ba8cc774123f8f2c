package composer

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkzef/chirp/internal/store"
)

// Recording sub-states. The composer is idle until StartRecording
// succeeds, recording until StopRecording moves it to reviewing, and
// back to idle once the clip is sent or cancelled.
type RecordingPhase string

const (
	PhaseIdle      RecordingPhase = "idle"
	PhaseRecording RecordingPhase = "recording"
	PhaseReviewing RecordingPhase = "reviewing"
)

// ErrNoRecorder is returned when no audio capture backend is available.
var ErrNoRecorder = errors.New("no audio recorder available")

// ErrMicDenied is returned by recorders when capture permission is
// refused; callers show it instead of entering the recording state.
var ErrMicDenied = errors.New("microphone access denied")

// Clip is a finished voice recording.
type Clip struct {
	Name     string
	Data     []byte
	Duration time.Duration
}

// Recorder captures audio.
type Recorder interface {
	Start() error
	Stop() (Clip, error)
	Cancel()
}

type recordingState struct {
	phase   RecordingPhase
	started time.Time
	clip    Clip
}

// RecordingPhase reports the current recording sub-state.
func (c *Composer) RecordingPhase() RecordingPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return PhaseIdle
	}
	return c.rec.phase
}

// RecordingElapsed returns how long the current take has been running,
// or the reviewed clip's duration once recording has stopped.
func (c *Composer) RecordingElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return 0
	}
	switch c.rec.phase {
	case PhaseRecording:
		return time.Since(c.rec.started)
	case PhaseReviewing:
		return c.rec.clip.Duration
	default:
		return 0
	}
}

// StartRecording begins a voice take. Fails without changing state when
// no recorder is wired or the microphone is unavailable.
func (c *Composer) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chatID == "" {
		return fmt.Errorf("no active chat")
	}
	if c.recorder == nil {
		return ErrNoRecorder
	}
	if c.rec != nil && c.rec.phase != PhaseIdle {
		return fmt.Errorf("already %s", c.rec.phase)
	}
	if err := c.recorder.Start(); err != nil {
		return err
	}
	c.rec = &recordingState{phase: PhaseRecording, started: time.Now()}
	return nil
}

// StopRecording ends the take and moves to reviewing, where the clip can
// be played back, sent, or discarded.
func (c *Composer) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec == nil || c.rec.phase != PhaseRecording {
		return fmt.Errorf("not recording")
	}
	clip, err := c.recorder.Stop()
	if err != nil {
		c.rec = nil
		return fmt.Errorf("stop recording: %w", err)
	}
	if clip.Duration == 0 {
		clip.Duration = time.Since(c.rec.started)
	}
	c.rec = &recordingState{phase: PhaseReviewing, clip: clip}
	return nil
}

// CancelRecording discards the take from either active sub-state. Safe
// to call when idle.
func (c *Composer) CancelRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec == nil {
		return
	}
	if c.rec.phase == PhaseRecording {
		c.recorder.Cancel()
	}
	c.rec = nil
}

// SendRecording queues the reviewed clip as an audio message.
func (c *Composer) SendRecording() (*store.Message, error) {
	c.mu.Lock()
	if c.rec == nil || c.rec.phase != PhaseReviewing {
		c.mu.Unlock()
		return nil, fmt.Errorf("no recording to send")
	}
	chatID := c.chatID
	clip := c.rec.clip
	c.rec = nil
	c.mu.Unlock()

	name := clip.Name
	if name == "" {
		name = fmt.Sprintf("voice-%s.ogg", FormatElapsed(clip.Duration))
	}
	return c.outbox.Enqueue(chatID, encodeAttachment(name, clip.Data), store.TypeAudio)
}

// FormatElapsed renders a duration as m:ss for the recording timer.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
