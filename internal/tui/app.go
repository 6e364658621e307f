// Package tui is the terminal front end.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/status"
	intsync "github.com/matheus3301/imsg/internal/sync"
	"github.com/matheus3301/imsg/internal/tui/keys"
	"github.com/matheus3301/imsg/internal/tui/model"
	"github.com/matheus3301/imsg/internal/tui/ui"
	"github.com/matheus3301/imsg/internal/tui/views"
)

const (
	pageMain    = "main"
	pageHelp    = "help"
	pageDetails = "details"
	pageAccess  = "access"
)

// scrollStep is how many rows , and . move the thread.
const scrollStep = 5

// Loop is the sync loop as driven by the UI.
type Loop interface {
	Select(id conversation.ID)
	ToggleServices()
	Refresh()
	Snapshot() intsync.Snapshot
}

// Names is the contact name cache.
type Names interface {
	conversation.Names
	Len() int
}

// Messenger sends at most one message at a time.
type Messenger interface {
	Send(to conversation.ID, body string) (string, bool)
	Pending() bool
}

// Automation talks to Messages.app and System Settings.
type Automation interface {
	SendReturn(ctx context.Context) error
	CheckAccessibility(ctx context.Context) (bool, error)
	OpenAccessibility(ctx context.Context) (bool, error)
	KeyboardAccess(ctx context.Context) (bool, error)
}

// Deps are the running services the UI drives.
type Deps struct {
	Bus        *bus.Bus
	Loop       Loop
	Names      Names
	Messenger  Messenger
	Automation Automation
	Status     func() status.State
	ChatDB     string
	Logger     *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	deps     Deps
	logger   *zap.Logger
	theme    *ui.Theme
	vm       *model.ViewModel
	flash    *ui.FlashModel
	registry *keys.Registry

	pages     *ui.Pages
	body      *tview.Flex
	info      *ui.InfoPanel
	menu      *ui.Menu
	crumbs    *ui.Crumbs
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	list      *views.ConversationList
	composer  *views.Composer
	thread    *views.MessageThread
	details   *views.ConversationInfo
	help      *views.HelpView
	access    *views.AccessView
	statusBar *views.StatusBar

	promptShown bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewApp builds the widgets. Nothing runs until Run.
func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Status == nil {
		d.Status = func() status.State { return status.Booting }
	}
	theme := ui.DefaultTheme()
	ctx, cancel := context.WithCancel(context.Background())
	composer := views.NewComposer(theme)

	a := &App{
		app:       tview.NewApplication(),
		deps:      d,
		logger:    logger,
		theme:     theme,
		vm:        model.NewViewModel(d.Names),
		flash:     ui.NewFlashModel(),
		registry:  keys.NewRegistry(),
		pages:     ui.NewPages(),
		info:      ui.NewInfoPanel(theme),
		menu:      ui.NewMenu(theme),
		crumbs:    ui.NewCrumbs(theme),
		prompt:    ui.NewPrompt(theme),
		flashBar:  ui.NewFlashBar(theme),
		list:      views.NewConversationList(theme),
		composer:  composer,
		thread:    views.NewMessageThread(theme, composer),
		details:   views.NewConversationInfo(theme),
		help:      views.NewHelpView(theme),
		access:    views.NewAccessView(theme),
		statusBar: views.NewStatusBar(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	key := func(r rune, desc string, fn func()) *keys.Action {
		return &keys.Action{Key: tcell.KeyRune, Rune: r, Label: string(r), Description: desc, Handler: fn}
	}

	a.registry.AddGlobal(key(':', "Command", func() { a.showPrompt(ui.PromptCommand) }))
	a.registry.AddGlobal(key('?', "Help", func() { a.pushPage(pageHelp) }))
	a.registry.AddGlobal(key('q', "Quit", a.Stop))

	a.registry.AddPage(pageMain, &keys.Action{Key: tcell.KeyTab, Label: "Tab", Description: "Compose", Handler: a.focusComposer})
	a.registry.AddPage(pageMain, key('n', "New", a.newConversation))
	a.registry.AddPage(pageMain, key('r', "Services", a.toggleServices))
	a.registry.AddPage(pageMain, key('/', "Filter", func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddPage(pageMain, key('d', "Details", a.showDetails))
	a.registry.AddPage(pageMain, key('e', "Return", a.sendReturn))
	a.registry.AddPage(pageMain, key(',', "Up", func() { a.thread.Scroll(-scrollStep) }))
	a.registry.AddPage(pageMain, key('.', "Down", func() { a.thread.Scroll(scrollStep) }))

	a.registry.AddPage(pageAccess, key('o', "Settings", a.openAccessibility))
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(int, int) {
		if id := a.list.Selected(); !id.IsZero() {
			a.open(id)
		}
	})
	a.composer.SetOnSend(a.send)
	a.prompt.SetOnSubmit(a.submitPrompt)
	a.prompt.SetOnCancel(a.hidePrompt)
	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.registry.Hints(stack[len(stack)-1]))
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 38, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 24, 0, false)

	main := tview.NewFlex().
		AddItem(a.list, 0, 3, true).
		AddItem(a.thread, 0, 7, false)

	a.pages.AddPage(pageMain, main, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageAccess, a.access, true, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.Reset(pageMain)
	a.app.SetRoot(a.body, true)
	a.app.SetFocus(a.list)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	switch {
	case a.prompt.HasFocus():
		return ev
	case a.composer.HasFocus():
		if ev.Key() == tcell.KeyTab || ev.Key() == tcell.KeyEscape {
			a.focusList()
			return nil
		}
		return ev
	}
	if ev.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

// Run blocks until the user quits.
func (a *App) Run() error {
	events, unsubscribe := a.deps.Bus.Subscribe("", 256)
	defer unsubscribe()
	defer a.cancel()

	a.vm.Seed(a.deps.Loop.Snapshot(), a.deps.Status())
	a.renderList()
	a.renderThread()
	a.renderStatus()

	go a.watch(events)
	go a.tick()
	go a.checkAccess()
	return a.app.Run()
}

// Stop ends Run.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// watch applies bus events on the UI goroutine.
func (a *App) watch(events <-chan bus.Event) {
	for evt := range events {
		if a.ctx.Err() != nil {
			return
		}
		a.app.QueueUpdateDraw(func() { a.apply(evt) })
	}
}

func (a *App) apply(evt bus.Event) {
	a.render(a.vm.Apply(evt))
}

// reconcile catches the model up with a snapshot in case bus events
// were dropped while the UI was busy.
func (a *App) reconcile(snap intsync.Snapshot) {
	a.render(a.vm.Reconcile(snap))
}

func (a *App) render(change model.Change) {
	if change.Has(model.ChangedList) {
		a.renderList()
	}
	if change.Has(model.ChangedThread) {
		a.renderThread()
	}
	if change.Has(model.ChangedSend) {
		if r := a.vm.LastSend(); r != nil {
			if r.Err != nil {
				a.flash.Err(fmt.Errorf("send to %s failed: %w", r.To.Key(), r.Err))
			} else {
				a.flash.Info("Message sent to " + r.To.Key())
			}
		}
	}
	if change != 0 {
		a.renderStatus()
	}
}

// tick keeps the clock, flash expiry and row counter current.
func (a *App) tick() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			snap := a.deps.Loop.Snapshot()
			a.app.QueueUpdateDraw(func() {
				a.reconcile(snap)
				a.renderStatus()
			})
		}
	}
}

// checkAccess shows the permissions page once at startup when sending
// would fail. Machines without osascript skip it.
func (a *App) checkAccess() {
	if a.deps.Automation == nil {
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	assistive, err := a.deps.Automation.CheckAccessibility(ctx)
	if err != nil {
		a.logger.Debug("accessibility check unavailable", zap.Error(err))
		return
	}
	keyboard, err := a.deps.Automation.KeyboardAccess(ctx)
	if err != nil {
		a.logger.Debug("keyboard access check unavailable", zap.Error(err))
	}
	if assistive {
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.access.Update(assistive, keyboard)
		a.pushPage(pageAccess)
	})
}

func (a *App) renderList() {
	entries, total := a.vm.Entries()
	a.list.Update(entries, total, a.vm.Filter())
}

func (a *App) renderThread() {
	a.thread.SetConversation(a.selectedEntry())
	a.thread.Update(a.vm.Lines())
}

func (a *App) renderStatus() {
	pending := a.deps.Messenger != nil && a.deps.Messenger.Pending()
	a.statusBar.Update(a.vm.Status(), a.vm.OtherServices(), pending)
	names := 0
	if a.deps.Names != nil {
		names = a.deps.Names.Len()
	}
	_, total := a.vm.Entries()
	a.info.Update(ui.InfoData{
		ChatDB:        a.deps.ChatDB,
		Status:        string(a.vm.Status()),
		Conversations: total,
		LastRowID:     a.vm.LastRowID(),
		OtherServices: a.vm.OtherServices(),
		Names:         names,
	})
	a.flashBar.Update(a.flash.Current())
}

// selectedEntry returns the list entry for the selection, or a bare one
// for a conversation not in the list yet.
func (a *App) selectedEntry() conversation.Entry {
	id := a.vm.Selected()
	if id.IsZero() {
		return conversation.Entry{}
	}
	if e, ok := a.vm.Entry(id); ok {
		return e
	}
	label := id.Key()
	if a.deps.Names != nil {
		if name, ok := a.deps.Names.Name(id.Key()); ok {
			label = name
		}
	}
	return conversation.Entry{ID: id, Label: label}
}

func (a *App) open(id conversation.ID) {
	a.vm.Select(id)
	a.deps.Loop.Select(id)
	a.renderThread()
	a.focusComposer()
}

func (a *App) send(text string) bool {
	id := a.vm.Selected()
	switch {
	case id.IsZero():
		a.flash.Warn("Open a conversation first")
	case strings.TrimSpace(text) == "":
		return false
	default:
		if _, ok := a.deps.Messenger.Send(id, text); !ok {
			a.flash.Warn("Still sending the previous message")
			break
		}
		a.flash.Info("Sending to " + id.Key())
		a.renderStatus()
		return true
	}
	a.flashBar.Update(a.flash.Current())
	return false
}

func (a *App) toggleServices() {
	if a.vm.OtherServices() {
		a.flash.Info("Showing iMessage only")
	} else {
		a.flash.Info("Showing all services")
	}
	a.deps.Loop.ToggleServices()
	a.flashBar.Update(a.flash.Current())
}

func (a *App) newConversation() {
	a.showPrompt(ui.PromptRecipient)
}

func (a *App) showDetails() {
	e := a.selectedEntry()
	if e.ID.IsZero() {
		if id := a.list.Selected(); !id.IsZero() {
			e, _ = a.vm.Entry(id)
		}
	}
	a.details.Update(e, len(a.vm.Lines()))
	a.pushPage(pageDetails)
}

func (a *App) sendReturn() {
	if a.deps.Automation == nil {
		return
	}
	go func() {
		err := a.deps.Automation.SendReturn(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(fmt.Errorf("press Return: %w", err))
			} else {
				a.flash.Info("Pressed Return in Messages")
			}
			a.flashBar.Update(a.flash.Current())
		})
	}()
}

func (a *App) openAccessibility() {
	if a.deps.Automation == nil {
		return
	}
	go func() {
		if _, err := a.deps.Automation.OpenAccessibility(a.ctx); err != nil {
			a.app.QueueUpdateDraw(func() {
				a.flash.Err(fmt.Errorf("open settings: %w", err))
				a.flashBar.Update(a.flash.Current())
			})
		}
	}()
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.body.ResizeItem(a.prompt, 3, 0)
	a.promptShown = true
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.body.ResizeItem(a.prompt, 0, 0)
	a.promptShown = false
	a.focusList()
}

func (a *App) submitPrompt(mode ui.PromptMode, text string) {
	a.hidePrompt()
	switch mode {
	case ui.PromptFilter:
		a.vm.SetFilter(text)
		a.renderList()
	case ui.PromptRecipient:
		a.openKey(text)
	case ui.PromptCommand:
		a.runCommand(ParseCommand(text))
	}
}

func (a *App) openKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	a.open(conversation.ParseKey(key, a.vm.Known()))
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "":
	case "new":
		if cmd.Args == "" {
			a.newConversation()
			return
		}
		a.openKey(cmd.Args)
	case "services":
		a.toggleServices()
	case "refresh":
		a.deps.Loop.Refresh()
		a.flash.Info("Refreshing")
	case "details":
		a.showDetails()
	case "help":
		a.pushPage(pageHelp)
	case "quit":
		a.Stop()
	default:
		a.flash.Warn(fmt.Sprintf("Unknown command %q", cmd.Name))
	}
	a.flashBar.Update(a.flash.Current())
}

func (a *App) pushPage(name string) {
	a.pages.Push(name)
	if name == pageMain {
		a.focusList()
		return
	}
	a.app.SetFocus(a.pages)
}

// back closes the prompt or the top page.
func (a *App) back() {
	if a.promptShown {
		a.hidePrompt()
		return
	}
	if a.pages.Pop() != "" && a.pages.Current() == pageMain {
		a.focusList()
		return
	}
	if a.vm.Filter() != "" {
		a.vm.SetFilter("")
		a.renderList()
	}
}

func (a *App) focusList() {
	a.app.SetFocus(a.list)
}

func (a *App) focusComposer() {
	if a.pages.Current() != pageMain {
		return
	}
	a.app.SetFocus(a.composer)
}
