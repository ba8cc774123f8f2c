// Package ui holds shared look-and-feel for the TUI widgets.
package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds the color palette.
type Theme struct {
	Bg          tcell.Color
	Fg          tcell.Color
	Border      tcell.Color
	BorderFocus tcell.Color
	Title       tcell.Color
	HeaderFg    tcell.Color
	CursorFg    tcell.Color
	CursorBg    tcell.Color
	StatusBarBg tcell.Color
}

// DefaultTheme is a dark palette tuned for long chat sessions.
func DefaultTheme() *Theme {
	return &Theme{
		Bg:          tcell.ColorBlack,
		Fg:          tcell.ColorLightGray,
		Border:      tcell.ColorDarkSlateGray,
		BorderFocus: tcell.ColorMediumSpringGreen,
		Title:       tcell.ColorMediumSpringGreen,
		HeaderFg:    tcell.ColorWhite,
		CursorFg:    tcell.ColorBlack,
		CursorBg:    tcell.ColorMediumSpringGreen,
		StatusBarBg: tcell.ColorDarkSlateGray,
	}
}

// Apply installs the theme into tview's global styles. Must run before
// widgets are constructed.
func (t *Theme) Apply() {
	tview.Styles.PrimitiveBackgroundColor = t.Bg
	tview.Styles.ContrastBackgroundColor = t.Bg
	tview.Styles.MoreContrastBackgroundColor = t.StatusBarBg
	tview.Styles.PrimaryTextColor = t.Fg
	tview.Styles.SecondaryTextColor = t.HeaderFg
	tview.Styles.BorderColor = t.Border
	tview.Styles.TitleColor = t.Title
}
