package conversation

import (
	"context"
	"fmt"

	"github.com/matheus3301/imsg/internal/store"
)

// IndexBuilder produces the conversation list.
type IndexBuilder struct {
	src   Source
	names Names
}

func NewIndexBuilder(src Source, names Names) *IndexBuilder {
	return &IndexBuilder{src: src, names: names}
}

// Build returns one entry per conversation with received messages, most
// recent activity first. Handles not yet in the name cache are queued for
// resolution.
func (b *IndexBuilder) Build(ctx context.Context, otherServices bool) ([]Entry, error) {
	rows, err := b.src.ConversationRows(ctx, otherServices)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	var entries []Entry
	for _, r := range rows {
		id, ok := idFromRow(r)
		if !ok {
			continue
		}
		key := id.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		entries = append(entries, Entry{
			ID:           id,
			Label:        label(id, b.names),
			LastActivity: store.AppleTime(r.Date),
		})
		if !id.IsGroup() && b.names != nil {
			if _, ok := b.names.Name(key); !ok {
				b.names.Resolve(key)
			}
		}
	}
	return entries, nil
}

// idFromRow picks the conversation a received message belongs to. A chat
// row is a group when it is named or has the group style; an unnamed
// one-to-one chat collapses onto its identifier as a handle.
func idFromRow(r store.ConversationRow) (ID, bool) {
	if r.ChatIdentifier == "" {
		if r.Handle == "" {
			return ID{}, false
		}
		return Handle(r.Handle), true
	}
	if r.DisplayName != "" || r.Style == store.ChatStyleGroup {
		return GroupChat(r.ChatIdentifier, r.DisplayName), true
	}
	return Handle(r.ChatIdentifier), true
}
