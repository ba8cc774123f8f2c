package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dkzef/chirp/internal/composer"
)

// ComposerView is the input line at the bottom of an open chat. It
// doubles as the recording indicator while a voice take is in flight.
type ComposerView struct {
	*tview.InputField
	onSend   func(text string)
	onTyping func()
}

// NewComposerView creates the composer input.
func NewComposerView() *ComposerView {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	cv := &ComposerView{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && cv.onSend != nil {
			cv.onSend(cv.GetText())
			cv.SetText("")
		}
	})
	input.SetChangedFunc(func(string) {
		if cv.onTyping != nil {
			cv.onTyping()
		}
	})

	return cv
}

// SetOnSend sets the callback for Enter.
func (cv *ComposerView) SetOnSend(fn func(text string)) {
	cv.onSend = fn
}

// SetOnTyping sets the callback fired on every edit.
func (cv *ComposerView) SetOnTyping(fn func()) {
	cv.onTyping = fn
}

// ShowRecording swaps the prompt for the recording indicator.
func (cv *ComposerView) ShowRecording(phase composer.RecordingPhase, elapsed time.Duration) {
	switch phase {
	case composer.PhaseRecording:
		cv.SetLabel(fmt.Sprintf(" [red]●[-] REC %s (Enter:stop x:discard) ", composer.FormatElapsed(elapsed)))
	case composer.PhaseReviewing:
		cv.SetLabel(fmt.Sprintf(" [yellow]■[-] %s recorded (Enter:send x:discard) ", composer.FormatElapsed(elapsed)))
	default:
		cv.SetLabel(" > ")
	}
}
