package store

import "time"

// ConversationRow is one distinct (handle, chat) pair seen on a received
// message. Empty strings stand for NULL.
type ConversationRow struct {
	Date           int64
	Handle         string
	ChatIdentifier string
	DisplayName    string
	Style          int
}

// ChatStyleGroup is chat.style for multi-party chats.
const ChatStyleGroup = 43

// MessageRow is one message joined with at most one attachment.
type MessageRow struct {
	RowID                 int64
	SenderHandle          string
	Text                  string
	IsFromMe              bool
	Date                  int64
	AssociatedMessageType int
	ItemType              int
	IsAudio               bool
	PayloadPresent        bool
	AttributedBody        []byte
	Attachment            Attachment
}

type Attachment struct {
	Filename     string
	MIMEType     string
	TransferName string
}

// ThreadQuery selects the recent messages of one conversation.
type ThreadQuery struct {
	// Target is a chat identifier when Group is set, else a handle id.
	Target      string
	Group       bool
	AllServices bool
	Limit       int
}

// appleEpoch is 2001-01-01 UTC, the zero of message.date.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// AppleTime converts a message.date value. Newer databases store
// nanoseconds, older ones seconds.
func AppleTime(date int64) time.Time {
	if date == 0 {
		return time.Time{}
	}
	if date > 1_000_000_000_000 {
		return appleEpoch.Add(time.Duration(date))
	}
	return appleEpoch.Add(time.Duration(date) * time.Second)
}
