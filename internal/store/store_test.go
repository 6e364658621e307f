package store

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/imsg/internal/testutil/chatdb"
)

func openFixture(t *testing.T, m *chatdb.Messages) *DB {
	t.Helper()
	db, err := OpenChatDB(context.Background(), m.Path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenMissingFile(t *testing.T) {
	_, err := OpenChatDB(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("error = %v, want *OpenError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error does not wrap fs.ErrNotExist: %v", err)
	}
	if !strings.Contains(openErr.Remediation(), "chat_db") {
		t.Errorf("Remediation() = %q, want a config hint", openErr.Remediation())
	}
}

func TestOpenWrongSchema(t *testing.T) {
	book := chatdb.NewAddressBook(t, t.TempDir(), "AddressBook-v22.abcddb")
	_, err := OpenChatDB(context.Background(), book.Path)
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("error = %v, want *OpenError", err)
	}
	if !strings.Contains(openErr.Remediation(), "Full Disk Access") {
		t.Errorf("Remediation() = %q, want Full Disk Access hint", openErr.Remediation())
	}
}

func TestOpenIsReadOnly(t *testing.T) {
	db := openFixture(t, chatdb.NewMessages(t))
	if _, err := db.Exec(`INSERT INTO handle (id) VALUES ('x')`); err == nil {
		t.Error("write through read-only connection succeeded")
	}
}

func TestMaxRowID(t *testing.T) {
	m := chatdb.NewMessages(t)
	db := openFixture(t, m)
	ctx := context.Background()

	got, err := db.MaxRowID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("MaxRowID() on empty db = %d, want 0", got)
	}

	h := m.Handle("+15550001111")
	m.Text(h, "one")
	last := m.Text(h, "two")

	got, err = db.MaxRowID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != last {
		t.Errorf("MaxRowID() = %d, want %d", got, last)
	}
}

func TestConversationRows(t *testing.T) {
	m := chatdb.NewMessages(t)
	alice := m.Handle("+15550001111")
	bob := m.Handle("bob@example.com")
	room := m.Chat("chat123", "Team", ChatStyleGroup)

	m.Text(alice, "hi")
	m.Insert(chatdb.Message{Text: "sms", Handle: bob, Service: "SMS"})
	m.Insert(chatdb.Message{Text: "mine", Handle: alice, FromMe: true})
	m.Insert(chatdb.Message{Text: "group", Handle: alice, Room: room})

	db := openFixture(t, m)
	ctx := context.Background()

	rows, err := db.ConversationRows(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []ConversationRow{
		{Date: rows[0].Date, Handle: "+15550001111", ChatIdentifier: "chat123", DisplayName: "Team", Style: ChatStyleGroup},
		{Date: rows[1].Date, Handle: "+15550001111"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("ConversationRows(iMessage) mismatch (-want +got):\n%s", diff)
	}

	all, err := db.ConversationRows(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ConversationRows(all) = %d rows, want 3", len(all))
	}
	if all[1].Handle != "bob@example.com" {
		t.Errorf("all[1].Handle = %q, want bob@example.com", all[1].Handle)
	}
}

func TestRecentMessages(t *testing.T) {
	m := chatdb.NewMessages(t)
	alice := m.Handle("+15550001111")
	room := m.Chat("chat123", "", ChatStyleGroup)

	m.Text(alice, "first")
	m.Insert(chatdb.Message{Handle: alice, Payload: []byte{1}})
	m.Insert(chatdb.Message{Handle: alice, Body: []byte("blob"), Audio: true})
	m.Insert(chatdb.Message{Handle: alice, Attachment: &chatdb.Attachment{
		Filename: "~/Library/Messages/Attachments/IMG_9999.jpg", MIMEType: "image/jpeg", TransferName: "IMG_001.jpg",
	}})
	m.Insert(chatdb.Message{Text: "in group", Handle: alice, Room: room})
	m.Insert(chatdb.Message{Text: "sms", Handle: alice, Service: "SMS"})

	db := openFixture(t, m)
	ctx := context.Background()

	rows, err := db.RecentMessages(ctx, ThreadQuery{Target: "+15550001111", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (limit)", len(rows))
	}
	if rows[0].Text != "in group" {
		t.Errorf("rows[0].Text = %q, want newest first", rows[0].Text)
	}
	att := rows[1].Attachment
	if att.TransferName != "IMG_001.jpg" || att.MIMEType != "image/jpeg" {
		t.Errorf("attachment = %+v", att)
	}
	if !rows[2].IsAudio || string(rows[2].AttributedBody) != "blob" {
		t.Errorf("rows[2] = %+v, want audio with blob", rows[2])
	}

	all, err := db.RecentMessages(ctx, ThreadQuery{Target: "+15550001111", AllServices: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 || all[0].Text != "sms" {
		t.Errorf("AllServices: got %d rows, first %q", len(all), all[0].Text)
	}
	if !all[4].PayloadPresent {
		t.Errorf("all[4].PayloadPresent = false, want true")
	}
	if all[5].AttributedBody != nil {
		t.Errorf("plain text row has blob %q", all[5].AttributedBody)
	}

	group, err := db.RecentMessages(ctx, ThreadQuery{Target: "chat123", Group: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(group) != 1 || group[0].SenderHandle != "+15550001111" {
		t.Errorf("group rows = %+v", group)
	}
}

func TestAddressBookNames(t *testing.T) {
	book := chatdb.NewAddressBook(t, t.TempDir(), "AddressBook-v22.abcddb")
	book.Person("Ada", "Lovelace", []string{"+1 (555) 123-4567"}, []string{"ada@example.com"})
	book.Person("Prince", "", []string{"555-0000"}, nil)

	db, err := OpenAddressBook(context.Background(), book.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	tests := []struct {
		name   string
		lookup func() (string, bool, error)
		want   string
		found  bool
	}{
		{"phone suffix", func() (string, bool, error) { return db.NameByPhoneSuffix(ctx, "4567") }, "Ada Lovelace", true},
		{"email", func() (string, bool, error) { return db.NameByEmail(ctx, "ada@example.com") }, "Ada Lovelace", true},
		{"first name only", func() (string, bool, error) { return db.NameByPhoneSuffix(ctx, "0000") }, "Prince", true},
		{"miss", func() (string, bool, error) { return db.NameByEmail(ctx, "nobody@example.com") }, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := tt.lookup()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || found != tt.found {
				t.Errorf("got (%q, %v), want (%q, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestAppleTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	secs := want.Unix() - appleEpoch.Unix()

	if got := AppleTime(secs); !got.Equal(want) {
		t.Errorf("AppleTime(seconds) = %v, want %v", got, want)
	}
	if got := AppleTime(secs * int64(time.Second)); !got.Equal(want) {
		t.Errorf("AppleTime(nanos) = %v, want %v", got, want)
	}
	if !AppleTime(0).IsZero() {
		t.Error("AppleTime(0) should be zero")
	}
}
