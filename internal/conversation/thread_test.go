package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/imsg/internal/store"
	"github.com/matheus3301/imsg/internal/testutil/chatdb"
)

func TestBody(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		name string
		row  store.MessageRow
		want string
	}{
		{"plain", store.MessageRow{Text: "hi"}, "hi"},
		{"liked overrides text", store.MessageRow{Text: "Liked “hi”", AssociatedMessageType: 2001}, "[Liked a message]"},
		{"laughed", store.MessageRow{AssociatedMessageType: 2003}, "[Laughed a message]"},
		{"unknown reaction", store.MessageRow{AssociatedMessageType: 3001}, "[Reacted to a message]"},
		{"reaction wins over item type", store.MessageRow{AssociatedMessageType: 2000, ItemType: 1}, "[Loved a message]"},
		{"system", store.MessageRow{Text: "x", ItemType: 2}, "[System Message/Update]"},
		{"audio", store.MessageRow{IsAudio: true}, " [Audio Message]"},
		{"audio after reaction", store.MessageRow{AssociatedMessageType: 2004, IsAudio: true}, "[Emphasized a message] [Audio Message]"},
		{"rich link", store.MessageRow{PayloadPresent: true, AttributedBody: []byte("x")}, "[Rich Link / App Data]"},
		{"blob text", store.MessageRow{AttributedBody: []byte("\x01\x0bstreamtyped\x84Hello there\x86")}, "Hello there"},
		{"blob noise", store.MessageRow{AttributedBody: []byte("\x01NSString\x02")}, "[Rich Text Message]"},
		{"empty", store.MessageRow{}, "[Empty Message]"},
		{
			"attachment prefers transfer name",
			store.MessageRow{Attachment: store.Attachment{
				Filename:     "/private/var/folders/xy/IMG_9999.jpg",
				TransferName: "IMG_001.jpg",
			}},
			" [Attachment: IMG_001.jpg]",
		},
		{
			"attachment filename expands home",
			store.MessageRow{Text: "look", Attachment: store.Attachment{Filename: "~/Library/Messages/Attachments/a.heic"}},
			"look [Attachment: " + filepath.Join(home, "Library/Messages/Attachments/a.heic") + "]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Body(tt.row); got != tt.want {
				t.Errorf("Body() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThreadBuildOrderAndSenders(t *testing.T) {
	src := &fakeSource{msgRows: []store.MessageRow{
		{RowID: 3, Text: "third", IsFromMe: true},
		{RowID: 2, Text: "second", SenderHandle: "+1666"},
		{RowID: 1, Text: "first", SenderHandle: "+1555"},
		{RowID: 0, Text: "ghost"},
	}}
	names := newFakeNames("+1555", "Ada")

	thread, err := NewThreadBuilder(src, names, 0).Build(context.Background(), GroupChat("chat1", "Team"), true)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, l := range thread.Lines {
		got = append(got, l.String())
	}
	want := []string{"Unknown: ghost", "Ada: first", "+1666: second", "me: third"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"+1666"}, names.resolved); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}

	q := src.queries[0]
	if q.Target != "chat1" || !q.Group || !q.AllServices || q.Limit != DefaultLimit {
		t.Errorf("query = %+v", q)
	}
}

func TestThreadEmpty(t *testing.T) {
	thread, err := NewThreadBuilder(&fakeSource{}, nil, 10).Build(context.Background(), Handle("+1555"), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread.Lines) != 1 || thread.Lines[0].String() != NoMessages {
		t.Errorf("lines = %+v, want single placeholder", thread.Lines)
	}
}

func TestThreadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{msgRows: []store.MessageRow{{Text: "x"}}}
	if _, err := NewThreadBuilder(src, nil, 10).Build(ctx, Handle("+1555"), false); err == nil {
		t.Error("Build() on canceled context should fail")
	}
}

func TestThreadRelabel(t *testing.T) {
	thread := Thread{Lines: []Line{
		{SenderHandle: "+1555", Sender: "+1555", Body: "hi"},
		{Sender: "me", Body: "yo"},
	}}
	out := thread.Relabel(newFakeNames("+1555", "Ada"))
	if out.Lines[0].String() != "Ada: hi" || out.Lines[1].String() != "me: yo" {
		t.Errorf("relabeled = %+v", out.Lines)
	}
	if thread.Lines[0].Sender != "+1555" {
		t.Error("Relabel mutated its input")
	}
}

func TestBuildersAgainstChatDB(t *testing.T) {
	m := chatdb.NewMessages(t)
	alice := m.Handle("+15550001111")
	room := m.Chat("chat77", "Family", store.ChatStyleGroup)
	m.Text(alice, "hello")
	m.Insert(chatdb.Message{Text: "dinner?", Handle: alice, Room: room})
	m.Insert(chatdb.Message{Text: "yes", Handle: alice, Room: room, FromMe: true})
	m.Insert(chatdb.Message{Handle: alice, Room: room, AssociatedType: 2001})

	db, err := store.OpenChatDB(context.Background(), m.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	entries, err := NewIndexBuilder(db, nil).Build(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Family-chat77", "+15550001111"}, keys(entries)); diff != "" {
		t.Fatalf("index mismatch (-want +got):\n%s", diff)
	}

	thread, err := NewThreadBuilder(db, nil, 0).Build(context.Background(), entries[0].ID, false)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, l := range thread.Lines {
		got = append(got, l.String())
	}
	want := []string{"+15550001111: dinner?", "me: yes", "+15550001111: [Liked a message]"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("thread mismatch (-want +got):\n%s", diff)
	}
}
