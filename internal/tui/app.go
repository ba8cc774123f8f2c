// Package tui is the terminal interface: a chat list, an open-thread
// page with the composer, a message search page, and a debug panel over
// the API call log.
package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/calllog"
	"github.com/dkzef/chirp/internal/chatlist"
	"github.com/dkzef/chirp/internal/composer"
	"github.com/dkzef/chirp/internal/rest"
	"github.com/dkzef/chirp/internal/status"
	"github.com/dkzef/chirp/internal/tui/keys"
	"github.com/dkzef/chirp/internal/tui/model"
	"github.com/dkzef/chirp/internal/tui/ui"
	"github.com/dkzef/chirp/internal/tui/views"
)

const flashTTL = 5 * time.Second

// SendQueue is the slice of the outbox the TUI drives directly.
type SendQueue interface {
	Retry(clientMsgID string) (bool, error)
	RetryAll() (int, error)
	FailedCount() int
}

// ReadMarker reports opened chats to the backend.
type ReadMarker interface {
	MarkRead(ctx context.Context, chatID string) error
}

// App is the TUI shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	vm       *model.ViewModel
	comp     *composer.Composer
	sends    SendQueue
	reader   ReadMarker
	calls    *calllog.Log
	bus      *bus.Bus
	sm       *status.Machine
	registry *keys.Registry
	logger   *zap.Logger

	statusBar *views.StatusBar
	chatList  *views.ConversationList
	filter    *tview.InputField
	thread    *views.MessageThread
	compView  *views.ComposerView
	debug     *views.DebugPanel
	search    *views.SearchView

	ctx    context.Context
	cancel context.CancelFunc
}

// Config bundles the app's collaborators.
type Config struct {
	ViewModel *model.ViewModel
	Composer  *composer.Composer
	Sends     SendQueue
	Reader    ReadMarker
	Calls     *calllog.Log
	Bus       *bus.Bus
	Machine   *status.Machine
	Session   string
	Logger    *zap.Logger
}

// NewApp builds the TUI.
func NewApp(cfg Config) *App {
	ui.DefaultTheme().Apply()
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        cfg.ViewModel,
		comp:      cfg.Composer,
		sends:     cfg.Sends,
		reader:    cfg.Reader,
		calls:     cfg.Calls,
		bus:       cfg.Bus,
		sm:        cfg.Machine,
		registry:  keys.NewRegistry(),
		logger:    cfg.Logger.Named("tui"),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewConversationList(),
		thread:    views.NewMessageThread(),
		compView:  views.NewComposerView(),
		debug:     views.NewDebugPanel(),
		search:    views.NewSearchView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.filter = tview.NewInputField().SetLabel(" Filter: ").SetFieldWidth(0)
	a.statusBar.SetSession(cfg.Session)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.Stop() },
	})
	a.registry.AddGlobal("debug", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:debug", Visible: true,
		Handler: func() { a.showDebug() },
	})
	a.registry.AddGlobal("search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showSearch() },
	})

	a.registry.AddPage("chats", "filter-mode", &keys.Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:filter", Visible: true,
		Handler: func() {
			a.vm.CycleMode()
			a.refreshChats()
		},
	})
	a.registry.AddPage("chats", "filter-query", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:search names", Visible: true,
		Handler: func() { a.app.SetFocus(a.filter) },
	})
	a.registry.AddPage("chats", "pin", &keys.Action{
		Rune: 'p', Key: tcell.KeyRune,
		Description: "p:pin", Visible: true,
		Handler: func() { a.togglePinned() },
	})
	a.registry.AddPage("chats", "mute", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Description: "m:mute", Visible: true,
		Handler: func() { a.toggleMuted() },
	})

	a.registry.AddPage("chat", "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.compView.InputField) },
	})
	a.registry.AddPage("chat", "record", &keys.Action{
		Rune: 'v', Key: tcell.KeyRune,
		Description: "v:voice", Visible: true,
		Handler: func() { a.startRecording() },
	})
	a.registry.AddPage("chat", "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry failed", Visible: true,
		Handler: func() { a.retryAll() },
	})

	a.registry.AddPage("debug", "clear", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:clear", Visible: true,
		Handler: func() {
			a.calls.Clear()
			a.refreshDebug()
		},
	})
	a.registry.AddPage("debug", "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry sends", Visible: true,
		Handler: func() { a.retryAll() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.filter.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.filter.SetText("")
		}
		a.vm.SetQuery(a.filter.GetText())
		a.refreshChats()
		a.app.SetFocus(a.chatList)
	})
	a.filter.SetChangedFunc(func(text string) {
		a.vm.SetQuery(text)
		a.refreshChats()
	})

	a.compView.SetOnSend(func(text string) { a.submit(text) })
	a.compView.SetOnTyping(func() { a.comp.NotifyTyping() })

	a.search.SetOnQuery(func(query string) {
		results, err := a.vm.Search(query)
		if err != nil {
			a.flash("Search failed: " + err.Error())
			return
		}
		a.search.Update(results)
		a.app.SetFocus(a.search.Results())
	})
}

func (a *App) setupLayout() {
	chatsFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.filter, 1, 0, false).
		AddItem(a.chatList, 0, 1, true)

	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.compView, 1, 0, false)

	a.pages.AddPage("chats", chatsFlex, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("debug", a.debug, true, false)
	a.pages.AddPage("search", a.search, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.captureKey)
}

func (a *App) captureKey(event *tcell.EventKey) *tcell.EventKey {
	page, _ := a.pages.GetFrontPage()

	// The recording flow owns Enter and x while a take is in flight.
	if page == "chat" && a.comp.RecordingPhase() != composer.PhaseIdle {
		switch {
		case event.Key() == tcell.KeyEnter:
			a.advanceRecording()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'x':
			a.comp.CancelRecording()
			a.refreshThread()
			return nil
		case event.Key() == tcell.KeyEscape:
			a.comp.CancelRecording()
			a.refreshThread()
			return nil
		}
	}

	if event.Key() == tcell.KeyEscape {
		switch page {
		case "chat":
			a.closeChat()
			return nil
		case "debug", "search":
			a.showChats()
			return nil
		}
	}

	// Text inputs consume everything else themselves.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if a.registry.HandleEvent(page, event) {
		return nil
	}
	return event
}

// submit handles the composer's Enter: either a /attach command or a
// plain text send.
func (a *App) submit(text string) {
	if path, ok := strings.CutPrefix(strings.TrimSpace(text), "/attach "); ok {
		if _, err := a.comp.SubmitAttachment(strings.TrimSpace(path)); err != nil {
			a.flash("Attach failed: " + err.Error())
		}
		a.refreshThread()
		return
	}

	if _, err := a.comp.SubmitText(text); err != nil {
		a.flash("Send failed: " + err.Error())
		return
	}
	a.refreshThread()
}

func (a *App) startRecording() {
	if err := a.comp.StartRecording(); err != nil {
		a.flash("Recording failed: " + err.Error())
		return
	}
	a.refreshThread()
}

// advanceRecording is Enter while a take is in flight: stop moves to
// review, another Enter sends.
func (a *App) advanceRecording() {
	switch a.comp.RecordingPhase() {
	case composer.PhaseRecording:
		if err := a.comp.StopRecording(); err != nil {
			a.flash("Recording failed: " + err.Error())
		}
	case composer.PhaseReviewing:
		if _, err := a.comp.SendRecording(); err != nil {
			a.flash("Send failed: " + err.Error())
		}
	}
	a.refreshThread()
}

func (a *App) retryAll() {
	n, err := a.sends.RetryAll()
	if err != nil {
		a.flash("Retry failed: " + err.Error())
		return
	}
	if n > 0 {
		a.flash("Retrying " + strconv.Itoa(n) + " message(s)")
	} else {
		a.flash("Nothing to retry")
	}
	a.refreshDebug()
}

func (a *App) togglePinned() {
	id := a.chatList.SelectedChat()
	if id == "" {
		return
	}
	if err := a.vm.TogglePinned(id); err != nil {
		a.flash("Pin failed: " + err.Error())
		return
	}
	a.reloadChats()
}

func (a *App) toggleMuted() {
	id := a.chatList.SelectedChat()
	if id == "" {
		return
	}
	if err := a.vm.ToggleMuted(id); err != nil {
		a.flash("Mute failed: " + err.Error())
		return
	}
	a.reloadChats()
}

func (a *App) openChat(id string) {
	if err := a.vm.LoadMessages(id); err != nil {
		a.flash("Load failed: " + err.Error())
		return
	}
	a.comp.SetChat(id)

	if err := a.vm.MarkRead(id); err == nil {
		go func() {
			ctx, cancelRead := context.WithTimeout(a.ctx, 5*time.Second)
			defer cancelRead()
			if a.reader != nil {
				_ = a.reader.MarkRead(ctx, id)
			}
		}()
	}

	name := id
	if c := a.vm.ChatByID(id); c != nil {
		name = chatlist.DisplayName(c)
	}
	a.thread.SetChatName(name)
	a.refreshThread()
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.compView.InputField)
	a.updateHints("chat")
}

func (a *App) closeChat() {
	a.comp.SetChat("")
	a.vm.CloseChat()
	a.reloadChats()
	a.showChats()
}

func (a *App) showChats() {
	a.pages.SwitchToPage("chats")
	a.app.SetFocus(a.chatList)
	a.updateHints("chats")
}

func (a *App) showDebug() {
	a.refreshDebug()
	a.pages.SwitchToPage("debug")
	a.app.SetFocus(a.debug)
	a.updateHints("debug")
}

func (a *App) showSearch() {
	a.pages.SwitchToPage("search")
	a.app.SetFocus(a.search.Input())
	a.updateHints("search")
}

func (a *App) updateHints(page string) {
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) flash(msg string) {
	a.vm.Flash.Set(msg, flashTTL)
	a.statusBar.SetFlash(msg)
	a.logger.Debug("flash", zap.String("msg", msg))
}

func (a *App) refreshChats() {
	a.chatList.Update(a.vm.Chats(), a.vm.Mode(), a.vm.Query())
}

func (a *App) reloadChats() {
	if err := a.vm.LoadChats(); err != nil {
		a.logger.Error("chat reload failed", zap.Error(err))
		return
	}
	a.refreshChats()
}

func (a *App) refreshThread() {
	id := a.vm.ActiveChatID()
	if id == "" {
		return
	}
	a.thread.Update(a.vm.Messages(), a.vm.IsTyping(id))
	a.compView.ShowRecording(a.comp.RecordingPhase(), a.comp.RecordingElapsed())
}

func (a *App) refreshDebug() {
	a.debug.Update(a.calls.Records(), a.calls.Stats(), a.sends.FailedCount())
}

// Run starts the TUI and blocks until quit.
func (a *App) Run() error {
	a.reloadChats()
	a.statusBar.SetState(a.sm.Label())
	a.updateHints("chats")

	go a.eventLoop()
	go a.tickLoop()

	return a.app.Run()
}

// eventLoop applies bus events to whichever page is showing.
func (a *App) eventLoop() {
	ch, unsub := a.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.handleBusEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleBusEvent(evt bus.Event) {
	a.app.QueueUpdateDraw(func() {
		switch {
		case evt.Kind == bus.KindSessionStatusChanged:
			a.statusBar.SetState(a.sm.Label())

		case evt.Kind == bus.KindMessageSendFailed:
			a.flash("Send failed; press r to retry")
			a.reloadActive()

		case evt.Kind == bus.KindRemoteTyping:
			if env, ok := evt.Payload.(rest.Envelope); ok {
				a.vm.MarkTyping(env.ChatID, env.IsTyping)
				if env.ChatID == a.vm.ActiveChatID() {
					a.refreshThread()
				}
			}

		case evt.Kind == bus.KindMessageUpserted:
			a.notifyNewMessage(evt)
			a.reloadActive()

		case strings.HasPrefix(evt.Kind, "message.") || strings.HasPrefix(evt.Kind, "chat."):
			a.reloadActive()

		case strings.HasPrefix(evt.Kind, "call."):
			if page, _ := a.pages.GetFrontPage(); page == "debug" {
				a.refreshDebug()
			}
		}
	})
}

// notifyNewMessage flashes incoming messages for chats that are not open
// and not muted.
func (a *App) notifyNewMessage(evt bus.Event) {
	payload, ok := evt.Payload.(map[string]string)
	if !ok {
		return
	}
	chatID := payload["chat_id"]
	if chatID == "" || chatID == a.vm.ActiveChatID() {
		return
	}
	c := a.vm.ChatByID(chatID)
	if c == nil || c.IsMuted {
		return
	}
	a.flash("New message in " + chatlist.DisplayName(c))
}

// reloadActive refreshes the data behind whichever page is in front.
func (a *App) reloadActive() {
	page, _ := a.pages.GetFrontPage()
	switch page {
	case "chats":
		a.reloadChats()
	case "chat":
		if id := a.vm.ActiveChatID(); id != "" {
			if err := a.vm.LoadMessages(id); err != nil {
				a.logger.Error("thread reload failed", zap.Error(err))
			}
			a.refreshThread()
		}
	}
}

// tickLoop drives the clock, flash expiry, the recording timer, and a
// fallback refresh in case a bus event was dropped.
func (a *App) tickLoop() {
	second := time.NewTicker(time.Second)
	refresh := time.NewTicker(5 * time.Second)
	defer second.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-second.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.vm.Flash.Get())
				if a.comp.RecordingPhase() == composer.PhaseRecording {
					a.compView.ShowRecording(composer.PhaseRecording, a.comp.RecordingElapsed())
				}
			})
		case <-refresh.C:
			a.app.QueueUpdateDraw(func() {
				a.reloadActive()
				a.statusBar.SetState(a.sm.Label())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.comp.Close()
	a.app.Stop()
}
