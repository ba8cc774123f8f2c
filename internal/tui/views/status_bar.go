package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar is the single-line footer: session, connection state, key
// hints, clock, and transient flash messages.
type StatusBar struct {
	*tview.TextView
	session string
	state   string
	hints   string
	flash   string
}

// NewStatusBar creates the footer bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv}
}

// SetSession sets the session name shown on the left.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState sets the connection state label.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetHints sets the key hint line for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = strings.Join(hints, "  ")
	sb.render()
}

// SetFlash sets the transient message slot (empty clears it).
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s | %s",
		sb.session, sb.state, sb.hints, time.Now().Format("15:04"))
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}
	fmt.Fprint(sb, line)
}
