// Package keys holds the keybinding registry: global actions plus
// per-page actions, dispatched by the app's input capture.
package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action is one keybinding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string // shown in the hint line, e.g. "q:quit"
	Handler     func()
	Visible     bool
}

// Matches reports whether the event triggers this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds keybindings by scope. Page bindings shadow global ones.
type Registry struct {
	global map[string]*Action
	pages  map[string]map[string]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global: make(map[string]*Action),
		pages:  make(map[string]map[string]*Action),
	}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global[name] = action
}

// AddPage registers a binding active only on the named page.
func (r *Registry) AddPage(page, name string, action *Action) {
	if r.pages[page] == nil {
		r.pages[page] = make(map[string]*Action)
	}
	r.pages[page][name] = action
}

// Hints returns the visible binding descriptions for a page, page
// bindings first, each group sorted for a stable hint line.
func (r *Registry) Hints(page string) []string {
	var hints []string
	hints = append(hints, visibleDescriptions(r.pages[page])...)
	hints = append(hints, visibleDescriptions(r.global)...)
	return hints
}

func visibleDescriptions(actions map[string]*Action) []string {
	var out []string
	for _, a := range actions {
		if a.Visible {
			out = append(out, a.Description)
		}
	}
	sort.Strings(out)
	return out
}

// HandleEvent dispatches a key event on the given page. Returns true if
// an action handled it.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, a := range r.pages[page] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
