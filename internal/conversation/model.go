package conversation

import (
	"context"
	"time"

	"github.com/matheus3301/imsg/internal/store"
)

// Names is the read side of the contact name cache.
type Names interface {
	// Name returns the cached display name for a handle.
	Name(id string) (string, bool)
	// Resolve starts a background lookup for id. It must not block.
	Resolve(id string)
}

// Source is the message store as seen by the builders.
type Source interface {
	ConversationRows(ctx context.Context, allServices bool) ([]store.ConversationRow, error)
	RecentMessages(ctx context.Context, q store.ThreadQuery) ([]store.MessageRow, error)
}

// Entry is one row of the conversation list.
type Entry struct {
	ID           ID
	Label        string
	LastActivity time.Time
}

// Line is one rendered message. Lines are values; relabeling builds new ones.
type Line struct {
	RowID        int64
	Time         time.Time
	SenderHandle string
	Sender       string
	Body         string
}

// String renders "sender: body". Lines without a sender (placeholders and
// inline errors) render the body alone.
func (l Line) String() string {
	if l.Sender == "" {
		return l.Body
	}
	return l.Sender + ": " + l.Body
}

// Thread is the rendered message list of one conversation, oldest first.
type Thread struct {
	ID    ID
	Lines []Line
}

// Relabel returns a copy of entries with labels taken from names where
// available.
func Relabel(entries []Entry, names Names) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Label = label(e.ID, names)
	}
	return out
}

// Relabel returns a copy of t with sender labels refreshed from names.
func (t Thread) Relabel(names Names) Thread {
	lines := make([]Line, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = l
		if l.SenderHandle != "" {
			if name, ok := names.Name(l.SenderHandle); ok {
				lines[i].Sender = name
			}
		}
	}
	return Thread{ID: t.ID, Lines: lines}
}

func label(id ID, names Names) string {
	if names != nil {
		if name, ok := names.Name(id.Key()); ok {
			return name
		}
	}
	return id.Key()
}
