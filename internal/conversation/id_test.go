package conversation

import "testing"

func TestIDKey(t *testing.T) {
	tests := []struct {
		name   string
		id     ID
		key    string
		group  bool
		target string
	}{
		{"phone", Handle("+15551234567"), "+15551234567", false, "+15551234567"},
		{"email", Handle("a@b.com"), "a@b.com", false, "a@b.com"},
		{"named chat", GroupChat("chat42", "Team"), "Team-chat42", true, "chat42"},
		{"unnamed chat", GroupChat("chat42", ""), "chat42", true, "chat42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Key(); got != tt.key {
				t.Errorf("Key() = %q, want %q", got, tt.key)
			}
			if got := tt.id.IsGroup(); got != tt.group {
				t.Errorf("IsGroup() = %v, want %v", got, tt.group)
			}
			if got := tt.id.Target(); got != tt.target {
				t.Errorf("Target() = %q, want %q", got, tt.target)
			}
		})
	}
}

func TestChatsWithDifferentNamesStayDistinct(t *testing.T) {
	a := GroupChat("chat42", "Team")
	b := GroupChat("chat42", "Old Team")
	if a.Key() == b.Key() {
		t.Errorf("keys collide: %q", a.Key())
	}
}

func TestParseKey(t *testing.T) {
	known := []Entry{
		{ID: GroupChat("chat42", "Team")},
		{ID: Handle("+15551234567")},
	}
	if got := ParseKey("Team-chat42", known); got != GroupChat("chat42", "Team") {
		t.Errorf("ParseKey(known group) = %#v", got)
	}
	if got := ParseKey("bob@example.com", known); got != Handle("bob@example.com") {
		t.Errorf("ParseKey(unknown) = %#v, want handle", got)
	}
	if !(ID{}).IsZero() || Handle("x").IsZero() {
		t.Error("IsZero mismatch")
	}
}
