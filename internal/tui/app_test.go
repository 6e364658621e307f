package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/outbox"
	"github.com/matheus3301/imsg/internal/status"
	intsync "github.com/matheus3301/imsg/internal/sync"
	"github.com/matheus3301/imsg/internal/tui/ui"
)

type fakeLoop struct {
	mu        sync.Mutex
	selected  conversation.ID
	toggles   int
	refreshes int
	snap      intsync.Snapshot
}

func (f *fakeLoop) Select(id conversation.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = id
}

func (f *fakeLoop) ToggleServices() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
}

func (f *fakeLoop) Refresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeLoop) Snapshot() intsync.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

type fakeMessenger struct {
	busy  bool
	sent  []string
	to    []conversation.ID
	calls int
}

func (f *fakeMessenger) Send(to conversation.ID, body string) (string, bool) {
	f.calls++
	if f.busy {
		return "", false
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return "req", true
}

func (f *fakeMessenger) Pending() bool { return f.busy }

var (
	alice = conversation.Handle("+15551234567")
	team  = conversation.GroupChat("chat9", "Team")
)

func newTestApp(t *testing.T) (*App, *fakeLoop, *fakeMessenger) {
	t.Helper()
	loop := &fakeLoop{snap: intsync.Snapshot{Conversations: []conversation.Entry{
		{ID: alice, Label: "Alice"},
		{ID: team, Label: "Team-chat9"},
	}}}
	m := &fakeMessenger{}
	a := NewApp(Deps{
		Bus:       bus.New(),
		Loop:      loop,
		Messenger: m,
		Status:    func() status.State { return status.Ready },
		ChatDB:    "/tmp/chat.db",
	})
	a.vm.Seed(loop.Snapshot(), status.Ready)
	a.renderList()
	t.Cleanup(a.cancel)
	return a, loop, m
}

func flashText(a *App) string {
	if msg := a.flash.Current(); msg != nil {
		return msg.Text
	}
	return ""
}

func TestSendNeedsConversation(t *testing.T) {
	a, _, m := newTestApp(t)

	if a.send("hello") {
		t.Error("send() accepted without a conversation")
	}
	if m.calls != 0 {
		t.Errorf("messenger calls = %d, want 0", m.calls)
	}
	if !strings.Contains(flashText(a), "Open a conversation") {
		t.Errorf("flash = %q", flashText(a))
	}
}

func TestSendToOpenConversation(t *testing.T) {
	a, loop, m := newTestApp(t)
	a.open(team)

	if loop.selected != team {
		t.Errorf("loop selected %v, want %v", loop.selected, team)
	}
	if !a.send("standup?") {
		t.Fatal("send() rejected")
	}
	if len(m.to) != 1 || m.to[0] != team || m.sent[0] != "standup?" {
		t.Errorf("sent %v %v", m.to, m.sent)
	}
}

func TestSendWhileBusyKeepsText(t *testing.T) {
	a, _, m := newTestApp(t)
	a.open(alice)
	m.busy = true

	if a.send("second") {
		t.Error("send() accepted while busy")
	}
	if !strings.Contains(flashText(a), "previous message") {
		t.Errorf("flash = %q", flashText(a))
	}
}

func TestRunCommand(t *testing.T) {
	a, loop, _ := newTestApp(t)

	a.runCommand(ParseCommand("s"))
	a.runCommand(ParseCommand("refresh"))
	if loop.toggles != 1 || loop.refreshes != 1 {
		t.Errorf("toggles = %d refreshes = %d, want 1 and 1", loop.toggles, loop.refreshes)
	}

	a.runCommand(ParseCommand("new Team-chat9"))
	if loop.selected != team {
		t.Errorf("new opened %v, want %v", loop.selected, team)
	}

	a.runCommand(ParseCommand("n bob@example.com"))
	if want := conversation.Handle("bob@example.com"); loop.selected != want {
		t.Errorf("new opened %v, want %v", loop.selected, want)
	}

	a.runCommand(ParseCommand("frobnicate"))
	if !strings.Contains(flashText(a), `"frobnicate"`) {
		t.Errorf("flash = %q", flashText(a))
	}

	a.runCommand(ParseCommand("help"))
	if got := a.pages.Current(); got != pageHelp {
		t.Errorf("page = %q, want %q", got, pageHelp)
	}
}

func TestFilterPrompt(t *testing.T) {
	a, _, _ := newTestApp(t)

	a.showPrompt(ui.PromptFilter)
	a.submitPrompt(ui.PromptFilter, "ali")
	if a.promptShown {
		t.Error("prompt still shown after submit")
	}
	entries, total := a.vm.Entries()
	if len(entries) != 1 || total != 2 {
		t.Errorf("filtered %d of %d, want 1 of 2", len(entries), total)
	}

	// Esc on the main page clears the filter.
	a.back()
	if a.vm.Filter() != "" {
		t.Errorf("filter = %q after back", a.vm.Filter())
	}
}

func TestKeyBindings(t *testing.T) {
	a, loop, _ := newTestApp(t)

	if !a.registry.Handle(pageMain, tcell.KeyRune, 'r') {
		t.Fatal("r not handled on main page")
	}
	if loop.toggles != 1 {
		t.Errorf("toggles = %d, want 1", loop.toggles)
	}

	a.registry.Handle(pageMain, tcell.KeyRune, '?')
	if a.pages.Current() != pageHelp {
		t.Fatalf("page = %q, want help", a.pages.Current())
	}
	if a.registry.Handle(pageHelp, tcell.KeyRune, 'r') {
		t.Error("r handled on the help page")
	}
	a.back()
	if a.pages.Current() != pageMain {
		t.Errorf("page = %q after back, want main", a.pages.Current())
	}
}

func TestApplySendFailure(t *testing.T) {
	a, _, _ := newTestApp(t)
	a.open(alice)

	a.apply(bus.Event{Kind: bus.KindSendFailed, Payload: outbox.Result{To: alice, Body: "hi", Err: errors.New("not authorized")}})

	lines := a.vm.Lines()
	if len(lines) != 1 || !strings.HasPrefix(lines[0].Body, "Error sending message: ") {
		t.Errorf("lines = %v", lines)
	}
	if msg := a.flash.Current(); msg == nil || msg.Level != ui.FlashErr {
		t.Errorf("flash = %+v, want an error", msg)
	}

	a.apply(bus.Event{Kind: bus.KindSendAck, Payload: outbox.Result{To: alice, Body: "hi"}})
	if lines := a.vm.Lines(); len(lines) != 0 {
		t.Errorf("lines after ack = %v, want none", lines)
	}
}

func TestTickRecoversDroppedThread(t *testing.T) {
	a, loop, _ := newTestApp(t)
	a.open(alice)

	loop.mu.Lock()
	loop.snap.State.Active = alice
	loop.snap.Thread = conversation.Thread{ID: alice, Lines: []conversation.Line{{RowID: 3, Sender: "Alice", Body: "running late"}}}
	loop.mu.Unlock()

	a.reconcile(loop.Snapshot())

	lines := a.vm.Lines()
	if len(lines) != 1 || lines[0].Body != "running late" {
		t.Errorf("lines = %v", lines)
	}
}
