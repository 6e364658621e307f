package conversation

// ID identifies a conversation: either a single handle (phone or email) or
// a multi-party chat. Build one with Handle or GroupChat.
type ID struct {
	group       bool
	handle      string
	chat        string
	displayName string
}

// Handle is a one-to-one conversation with a phone number or email.
func Handle(id string) ID {
	return ID{handle: id}
}

// GroupChat is a multi-party chat. displayName may be empty.
func GroupChat(chatIdentifier, displayName string) ID {
	return ID{group: true, chat: chatIdentifier, displayName: displayName}
}

// Key is the string form shown and matched on: the handle, the chat
// identifier, or "displayName-chatIdentifier" for a named chat. Chats that
// share an identifier but differ in display name get different keys.
func (id ID) Key() string {
	if !id.group {
		return id.handle
	}
	if id.displayName != "" {
		return id.displayName + "-" + id.chat
	}
	return id.chat
}

func (id ID) IsGroup() bool { return id.group }

// IsZero reports whether id is the zero ID, meaning no conversation.
func (id ID) IsZero() bool { return id == ID{} }

// Target is what the store and the send bridge address: the chat
// identifier for a group, else the handle.
func (id ID) Target() string {
	if id.group {
		return id.chat
	}
	return id.handle
}

// DisplayName returns the chat's display name, empty for handles.
func (id ID) DisplayName() string { return id.displayName }

func (id ID) String() string { return id.Key() }

// ParseKey maps a key typed by a user back to an ID. Keys of known entries
// win; anything else is taken as a handle.
func ParseKey(key string, known []Entry) ID {
	for _, e := range known {
		if e.ID.Key() == key {
			return e.ID
		}
	}
	return Handle(key)
}
