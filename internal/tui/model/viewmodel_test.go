package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/contacts"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/outbox"
	"github.com/matheus3301/imsg/internal/status"
	intsync "github.com/matheus3301/imsg/internal/sync"
)

type names map[string]string

func (n names) Name(id string) (string, bool) {
	v, ok := n[id]
	return v, ok
}

func (names) Resolve(string) {}

var (
	alice = conversation.Handle("+15551234567")
	bob   = conversation.Handle("bob@example.com")
	team  = conversation.GroupChat("chat9", "Team")
)

func bodies(lines []conversation.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return out
}

func TestThreadForOtherConversationIgnored(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Select(alice)

	if c := vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: bob, Lines: []conversation.Line{{Body: "nope"}}}}); c != 0 {
		t.Errorf("Apply(other thread) = %v, want 0", c)
	}
	if got := vm.Lines(); len(got) != 0 {
		t.Errorf("Lines() = %v, want none", got)
	}

	c := vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: alice, Lines: []conversation.Line{{Sender: "me", Body: "hi"}}}})
	if !c.Has(ChangedThread) {
		t.Errorf("Apply(active thread) = %v, want ChangedThread", c)
	}
	if diff := cmp.Diff([]string{"me: hi"}, bodies(vm.Lines())); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestNamesResolvedRelabels(t *testing.T) {
	n := names{}
	vm := NewViewModel(n)
	vm.Select(alice)
	vm.Apply(bus.Event{Kind: bus.KindConversations, Payload: []conversation.Entry{{ID: alice, Label: "+15551234567"}, {ID: team, Label: "Team-chat9"}}})
	vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: alice, Lines: []conversation.Line{
		{SenderHandle: "+15551234567", Sender: "+15551234567", Body: "hello"},
	}}})

	n["+15551234567"] = "Alice"
	c := vm.Apply(bus.Event{Kind: bus.KindNameResolved, Payload: contacts.Resolved{ID: "+15551234567", Name: "Alice"}})
	if !c.Has(ChangedList | ChangedThread) {
		t.Errorf("Apply(names.resolved) = %v", c)
	}
	entries, total := vm.Entries()
	if total != 2 || entries[0].Label != "Alice" || entries[1].Label != "Team-chat9" {
		t.Errorf("entries = %+v", entries)
	}
	if diff := cmp.Diff([]string{"Alice: hello"}, bodies(vm.Lines())); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}
}

func TestSendFailureShowsInlineError(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Select(alice)
	vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: alice, Lines: []conversation.Line{{Sender: "me", Body: "earlier"}}}})

	vm.Apply(bus.Event{Kind: bus.KindSendFailed, Payload: outbox.Result{To: alice, Err: errors.New("not signed in")}})
	vm.Apply(bus.Event{Kind: bus.KindSendFailed, Payload: outbox.Result{To: bob, Err: errors.New("elsewhere")}})

	want := []string{"me: earlier", "Error sending message: not signed in"}
	if diff := cmp.Diff(want, bodies(vm.Lines())); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}

	// A rebuilt thread keeps the error until a send succeeds.
	vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: alice, Lines: []conversation.Line{{Sender: "me", Body: "earlier"}}}})
	if got := len(vm.Lines()); got != 2 {
		t.Errorf("len(Lines()) after rebuild = %d, want 2", got)
	}
	vm.Apply(bus.Event{Kind: bus.KindSendAck, Payload: outbox.Result{To: alice}})
	if diff := cmp.Diff([]string{"me: earlier"}, bodies(vm.Lines())); diff != "" {
		t.Errorf("lines after ack (-want +got):\n%s", diff)
	}
	if r := vm.LastSend(); r == nil || r.To != alice || r.Err != nil {
		t.Errorf("LastSend() = %+v", r)
	}
}

func TestSelectClearsThread(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Select(alice)
	vm.Apply(bus.Event{Kind: bus.KindThread, Payload: conversation.Thread{ID: alice, Lines: []conversation.Line{{Body: "x"}}}})
	vm.Select(alice)
	if len(vm.Lines()) != 1 {
		t.Error("reselecting the same conversation dropped its thread")
	}
	vm.Select(team)
	if len(vm.Lines()) != 0 {
		t.Error("selecting another conversation kept the old thread")
	}
}

func TestFilter(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Apply(bus.Event{Kind: bus.KindConversations, Payload: []conversation.Entry{
		{ID: alice, Label: "Alice"}, {ID: bob, Label: "bob@example.com"}, {ID: team, Label: "Team-chat9"},
	}})
	vm.SetFilter("  TEAM ")
	got, total := vm.Entries()
	if total != 3 || len(got) != 1 || got[0].ID != team {
		t.Errorf("Entries() = %+v, %d", got, total)
	}
	vm.SetFilter("5551")
	if got, _ := vm.Entries(); len(got) != 1 || got[0].ID != alice {
		t.Errorf("filter on key: %+v", got)
	}
}

func TestSeedAndStatus(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Seed(intsync.Snapshot{
		State:         intsync.State{LastSeenMaxRowID: 7, Active: team, OtherServices: true},
		Conversations: []conversation.Entry{{ID: team, Label: "Team-chat9"}},
		Thread:        conversation.Thread{ID: team, Lines: []conversation.Line{{Body: "seeded"}}},
	}, status.Ready)

	if vm.Selected() != team || len(vm.Lines()) != 1 || !vm.OtherServices() || vm.LastRowID() != 7 {
		t.Errorf("seed not applied: selected=%v lines=%v", vm.Selected(), vm.Lines())
	}
	if c := vm.Apply(bus.Event{Kind: bus.KindStatusChanged, Payload: status.StatusChange{From: status.Ready, To: status.Degraded}}); c != ChangedStatus {
		t.Errorf("Apply(status) = %v", c)
	}
	if vm.Status() != status.Degraded {
		t.Errorf("Status() = %v", vm.Status())
	}
	if c := vm.Observe(intsync.State{LastSeenMaxRowID: 7, OtherServices: true}); c != 0 {
		t.Errorf("Observe(unchanged) = %v", c)
	}
	if c := vm.Observe(intsync.State{LastSeenMaxRowID: 9}); c != ChangedStatus {
		t.Errorf("Observe(changed) = %v", c)
	}
}

func TestReconcileRecoversDroppedEvents(t *testing.T) {
	vm := NewViewModel(names{"+15551234567": "Alice"})
	vm.Seed(intsync.Snapshot{Conversations: []conversation.Entry{{ID: bob}}}, status.Ready)
	vm.Select(alice)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := intsync.Snapshot{
		State: intsync.State{Active: alice},
		Conversations: []conversation.Entry{
			{ID: alice, Label: "+15551234567", LastActivity: now},
			{ID: bob, LastActivity: now.Add(-time.Hour)},
		},
		Thread: conversation.Thread{ID: alice, Lines: []conversation.Line{
			{RowID: 7, SenderHandle: "+15551234567", Sender: "+15551234567", Body: "lunch?"},
		}},
	}

	c := vm.Reconcile(snap)
	if !c.Has(ChangedList | ChangedThread) {
		t.Errorf("Reconcile() = %v, want list and thread", c)
	}
	entries, _ := vm.Entries()
	if len(entries) != 2 || entries[0].Label != "Alice" {
		t.Errorf("entries = %+v", entries)
	}
	if diff := cmp.Diff([]string{"Alice: lunch?"}, bodies(vm.Lines())); diff != "" {
		t.Errorf("lines (-want +got):\n%s", diff)
	}

	if c := vm.Reconcile(snap); c != 0 {
		t.Errorf("second Reconcile() = %v, want 0", c)
	}
}

func TestReconcileIgnoresOtherThread(t *testing.T) {
	vm := NewViewModel(nil)
	vm.Select(alice)

	c := vm.Reconcile(intsync.Snapshot{Thread: conversation.Thread{ID: bob, Lines: []conversation.Line{{RowID: 1, Body: "nope"}}}})
	if c.Has(ChangedThread) {
		t.Errorf("Reconcile() = %v, want no thread change", c)
	}
	if got := vm.Lines(); len(got) != 0 {
		t.Errorf("Lines() = %v, want none", got)
	}
}
