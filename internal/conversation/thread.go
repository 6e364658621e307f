package conversation

import (
	"context"
	"fmt"
	"slices"

	"github.com/matheus3301/imsg/internal/blob"
	"github.com/matheus3301/imsg/internal/paths"
	"github.com/matheus3301/imsg/internal/store"
)

// DefaultLimit is the number of recent messages loaded per thread.
const DefaultLimit = 500

// Placeholder bodies.
const (
	NoMessages   = "No messages"
	SystemUpdate = "[System Message/Update]"
	AudioMessage = "[Audio Message]"
	RichLink     = "[Rich Link / App Data]"
	RichText     = "[Rich Text Message]"
	EmptyMessage = "[Empty Message]"
)

var reactionLabels = map[int]string{
	2000: "Loved",
	2001: "Liked",
	2002: "Disliked",
	2003: "Laughed",
	2004: "Emphasized",
	2005: "Questioned",
}

// ThreadBuilder loads and renders the message list of one conversation.
type ThreadBuilder struct {
	src   Source
	names Names
	limit int
}

func NewThreadBuilder(src Source, names Names, limit int) *ThreadBuilder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ThreadBuilder{src: src, names: names, limit: limit}
}

// Build returns the newest messages of id in chronological order.
func (b *ThreadBuilder) Build(ctx context.Context, id ID, otherServices bool) (Thread, error) {
	rows, err := b.src.RecentMessages(ctx, store.ThreadQuery{
		Target:      id.Target(),
		Group:       id.IsGroup(),
		AllServices: otherServices,
		Limit:       b.limit,
	})
	if err != nil {
		return Thread{}, fmt.Errorf("build thread %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	if len(rows) == 0 {
		return Thread{ID: id, Lines: []Line{{Body: NoMessages}}}, nil
	}
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, b.render(r))
	}
	slices.Reverse(lines)
	return Thread{ID: id, Lines: lines}, nil
}

func (b *ThreadBuilder) render(r store.MessageRow) Line {
	return Line{
		RowID:        r.RowID,
		Time:         store.AppleTime(r.Date),
		SenderHandle: senderHandle(r),
		Sender:       b.sender(r),
		Body:         Body(r),
	}
}

func senderHandle(r store.MessageRow) string {
	if r.IsFromMe {
		return ""
	}
	return r.SenderHandle
}

func (b *ThreadBuilder) sender(r store.MessageRow) string {
	switch {
	case r.IsFromMe:
		return "me"
	case r.SenderHandle == "":
		return "Unknown"
	}
	if b.names != nil {
		if name, ok := b.names.Name(r.SenderHandle); ok {
			return name
		}
		b.names.Resolve(r.SenderHandle)
	}
	return r.SenderHandle
}

// Body renders the message text of a row with its annotations.
func Body(r store.MessageRow) string {
	text := r.Text
	if r.AssociatedMessageType != 0 {
		text = "[" + reactionLabel(r.AssociatedMessageType) + " a message]"
	} else if r.ItemType != 0 {
		text = SystemUpdate
	}

	if r.IsAudio {
		text += " " + AudioMessage
	}

	if text == "" && r.Attachment.Filename == "" {
		switch {
		case r.PayloadPresent:
			text = RichLink
		case len(r.AttributedBody) > 0:
			if extracted := blob.Text(r.AttributedBody); extracted != "" {
				text = extracted
			} else {
				text = RichText
			}
		default:
			text = EmptyMessage
		}
	}

	if r.Attachment.Filename != "" {
		text += " [Attachment: " + AttachmentName(r.Attachment) + "]"
	}
	return text
}

func reactionLabel(code int) string {
	if l, ok := reactionLabels[code]; ok {
		return l
	}
	return "Reacted to"
}

// AttachmentName prefers the transfer name, falling back to the stored
// path with "~" expanded.
func AttachmentName(a store.Attachment) string {
	name := a.TransferName
	if name == "" {
		name = a.Filename
	}
	return paths.ExpandHome(name)
}
