package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dkzef/chirp/internal/chatlist"
	"github.com/dkzef/chirp/internal/store"
)

// SearchView is the full text message search page: a query input over a
// result table.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	results *tview.Table
	matches []store.SearchResult
	onQuery func(query string)
}

// NewSearchView creates the search page.
func NewSearchView() *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	results.SetBorder(true).SetTitle(" Results ")

	sv := &SearchView{
		Flex:    tview.NewFlex().SetDirection(tview.FlexRow),
		input:   input,
		results: results,
	}
	sv.AddItem(input, 1, 0, true)
	sv.AddItem(results, 0, 1, false)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(input.GetText())
		}
	})

	return sv
}

// Input returns the query field for focusing.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the result table for focusing.
func (sv *SearchView) Results() *tview.Table { return sv.results }

// SetOnQuery sets the callback for a submitted query.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// Update redraws the result table.
func (sv *SearchView) Update(matches []store.SearchResult) {
	sv.matches = matches
	sv.results.Clear()
	sv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(matches)))

	now := time.Now()
	for i, m := range matches {
		sv.results.SetCell(i, 0, tview.NewTableCell(" "+chatlist.FormatTimestamp(m.Message.Timestamp, now)).SetMaxWidth(12))
		sv.results.SetCell(i, 1, tview.NewTableCell(" "+sanitizeForTerminal(m.Snippet)).SetExpansion(1))
	}
}

// SelectedChat returns the chat id of the highlighted result, or empty.
func (sv *SearchView) SelectedChat() string {
	row, _ := sv.results.GetSelection()
	if row >= 0 && row < len(sv.matches) {
		return sv.matches[row].Message.ChatID
	}
	return ""
}
