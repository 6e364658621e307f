// Package model keeps the state the TUI renders, fed by bus events.
package model

import (
	"strings"
	"sync"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/contacts"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/outbox"
	"github.com/matheus3301/imsg/internal/status"
	intsync "github.com/matheus3301/imsg/internal/sync"
)

// SendErrorPrefix starts the inline line shown for a failed send.
const SendErrorPrefix = "Error sending message: "

// Change tells the view which parts to redraw.
type Change uint8

const (
	ChangedList Change = 1 << iota
	ChangedThread
	ChangedStatus
	ChangedSend
)

// Has reports whether c includes all of o.
func (c Change) Has(o Change) bool { return c&o == o }

// ViewModel is the TUI's copy of the sync state.
type ViewModel struct {
	mu sync.RWMutex

	names    conversation.Names
	entries  []conversation.Entry
	thread   conversation.Thread
	errors   []conversation.Line
	selected conversation.ID
	filter   string
	status   status.State
	services bool
	lastRow  int64
	lastSend *outbox.Result
}

func NewViewModel(names conversation.Names) *ViewModel {
	return &ViewModel{names: names, status: status.Booting}
}

// Seed loads a snapshot taken before the bus subscription existed.
func (vm *ViewModel) Seed(snap intsync.Snapshot, st status.State) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.entries = vm.relabel(snap.Conversations)
	vm.services = snap.State.OtherServices
	vm.lastRow = snap.State.LastSeenMaxRowID
	vm.status = st
	if !snap.State.Active.IsZero() && snap.Thread.ID == snap.State.Active {
		vm.selected = snap.State.Active
		vm.thread = snap.Thread
	}
}

// Apply folds one bus event into the model.
func (vm *ViewModel) Apply(evt bus.Event) Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch p := evt.Payload.(type) {
	case []conversation.Entry:
		vm.entries = vm.relabel(p)
		return ChangedList
	case conversation.Thread:
		// A thread for any other conversation is stale.
		if vm.selected.IsZero() || p.ID != vm.selected {
			return 0
		}
		vm.thread = p
		if vm.names != nil {
			vm.thread = p.Relabel(vm.names)
		}
		return ChangedThread
	case contacts.Resolved:
		vm.entries = vm.relabel(vm.entries)
		if vm.names != nil {
			vm.thread = vm.thread.Relabel(vm.names)
		}
		return ChangedList | ChangedThread
	case status.StatusChange:
		vm.status = p.To
		return ChangedStatus
	case outbox.Result:
		r := p
		vm.lastSend = &r
		if evt.Kind == bus.KindSendFailed {
			if p.To == vm.selected {
				vm.errors = append(vm.errors, conversation.Line{Body: SendErrorPrefix + errText(p.Err)})
			}
			return ChangedThread | ChangedSend
		}
		if p.To == vm.selected {
			vm.errors = nil
		}
		return ChangedThread | ChangedSend
	}
	return 0
}

// Observe picks up loop state that has no event of its own. It reports
// ChangedStatus when something differs.
func (vm *ViewModel) Observe(st intsync.State) Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.services == st.OtherServices && vm.lastRow == st.LastSeenMaxRowID {
		return 0
	}
	vm.services = st.OtherServices
	vm.lastRow = st.LastSeenMaxRowID
	return ChangedStatus
}

// Reconcile catches up with a loop snapshot. Bus delivery drops events
// when a subscriber falls behind, so the UI compares against the snapshot
// periodically. Only the list and the selected thread are taken from it.
func (vm *ViewModel) Reconcile(snap intsync.Snapshot) Change {
	change := vm.Observe(snap.State)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !sameEntries(vm.entries, snap.Conversations) {
		vm.entries = vm.relabel(snap.Conversations)
		change |= ChangedList
	}
	if !vm.selected.IsZero() && snap.Thread.ID == vm.selected && !sameLines(vm.thread.Lines, snap.Thread.Lines) {
		vm.thread = snap.Thread
		if vm.names != nil {
			vm.thread = snap.Thread.Relabel(vm.names)
		}
		change |= ChangedThread
	}
	return change
}

// sameEntries ignores labels, which the model rewrites on name resolution.
func sameEntries(a, b []conversation.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].LastActivity.Equal(b[i].LastActivity) {
			return false
		}
	}
	return true
}

// sameLines ignores senders for the same reason.
func sameLines(a, b []conversation.Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].RowID != b[i].RowID || a[i].Body != b[i].Body {
			return false
		}
	}
	return true
}

// Select makes id current. Its thread stays empty until the loop
// publishes it.
func (vm *ViewModel) Select(id conversation.ID) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if id == vm.selected {
		return
	}
	vm.selected = id
	vm.thread = conversation.Thread{ID: id}
	vm.errors = nil
}

func (vm *ViewModel) Selected() conversation.ID {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.selected
}

// SetFilter narrows Entries to labels or keys containing text, ignoring case.
func (vm *ViewModel) SetFilter(text string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = strings.TrimSpace(text)
}

func (vm *ViewModel) Filter() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

// Entries returns the filtered conversation list and the unfiltered count.
func (vm *ViewModel) Entries() ([]conversation.Entry, int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.filter == "" {
		return append([]conversation.Entry(nil), vm.entries...), len(vm.entries)
	}
	needle := strings.ToLower(vm.filter)
	var out []conversation.Entry
	for _, e := range vm.entries {
		if strings.Contains(strings.ToLower(e.Label), needle) || strings.Contains(strings.ToLower(e.ID.Key()), needle) {
			out = append(out, e)
		}
	}
	return out, len(vm.entries)
}

// Entry finds the list entry for id.
func (vm *ViewModel) Entry(id conversation.ID) (conversation.Entry, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, e := range vm.entries {
		if e.ID == id {
			return e, true
		}
	}
	return conversation.Entry{}, false
}

// Known returns every entry, for resolving typed keys.
func (vm *ViewModel) Known() []conversation.Entry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]conversation.Entry(nil), vm.entries...)
}

// Lines returns the selected thread followed by any inline send errors.
func (vm *ViewModel) Lines() []conversation.Line {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]conversation.Line, 0, len(vm.thread.Lines)+len(vm.errors))
	out = append(out, vm.thread.Lines...)
	return append(out, vm.errors...)
}

func (vm *ViewModel) Status() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

func (vm *ViewModel) OtherServices() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.services
}

func (vm *ViewModel) LastRowID() int64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.lastRow
}

// LastSend returns the outcome of the most recent send, if any.
func (vm *ViewModel) LastSend() *outbox.Result {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.lastSend
}

func (vm *ViewModel) relabel(entries []conversation.Entry) []conversation.Entry {
	if vm.names == nil {
		return entries
	}
	return conversation.Relabel(entries, vm.names)
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
