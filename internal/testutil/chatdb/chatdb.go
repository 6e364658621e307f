// Package chatdb builds throwaway Messages and AddressBook databases for
// tests. Schemas carry only the tables and columns imsg reads.
package chatdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a writable fixture database.
type DB struct {
	Path string
	sql  *sql.DB
	t    testing.TB
}

func open(t testing.TB, path string, schema Schema) *DB {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Migrate(db, schema); err != nil {
		_ = db.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &DB{Path: path, sql: db, t: t}
}

func (d *DB) exec(q string, args ...any) int64 {
	d.t.Helper()
	res, err := d.sql.Exec(q, args...)
	if err != nil {
		d.t.Fatalf("fixture %s: %v", q, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// Exec runs a raw statement against the fixture.
func (d *DB) Exec(q string, args ...any) {
	d.t.Helper()
	d.exec(q, args...)
}

// Messages is a fixture chat.db.
type Messages struct {
	*DB
	clock int64
}

// NewMessages creates an empty chat.db in a temp dir.
func NewMessages(t testing.TB) *Messages {
	t.Helper()
	return &Messages{DB: open(t, filepath.Join(t.TempDir(), "chat.db"), SchemaMessages)}
}

// Handle inserts a handle row and returns its ROWID.
func (m *Messages) Handle(id string) int64 {
	m.t.Helper()
	return m.exec(`INSERT INTO handle (id) VALUES (?)`, id)
}

// Chat inserts a chat and returns the room name messages join on.
func (m *Messages) Chat(identifier, displayName string, style int) string {
	m.t.Helper()
	var dn any
	if displayName != "" {
		dn = displayName
	}
	m.exec(`INSERT INTO chat (chat_identifier, display_name, room_name, style, service_name) VALUES (?, ?, ?, ?, 'iMessage')`,
		identifier, dn, identifier, style)
	return identifier
}

// Message describes a row to insert. Zero fields stay NULL or 0.
type Message struct {
	Text           string
	Handle         int64
	Room           string
	Service        string
	Date           int64
	FromMe         bool
	AssociatedType int
	ItemType       int
	Audio          bool
	Payload        []byte
	Body           []byte
	Attachment     *Attachment
}

type Attachment struct {
	Filename     string
	MIMEType     string
	TransferName string
}

// Insert adds a message and returns its ROWID. A zero Date gets the next
// tick of a fixture clock so insertion order is date order.
func (m *Messages) Insert(msg Message) int64 {
	m.t.Helper()
	if msg.Service == "" {
		msg.Service = "iMessage"
	}
	if msg.Date == 0 {
		m.clock++
		msg.Date = m.clock * int64(time.Second)
	}
	id := m.exec(`
		INSERT INTO message (guid, text, handle_id, service, date, is_from_me, associated_message_type,
			item_type, is_audio_message, payload_data, attributedBody, cache_roomnames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("guid-%d", msg.Date), nullString(msg.Text), msg.Handle, msg.Service, msg.Date, msg.FromMe,
		msg.AssociatedType, msg.ItemType, msg.Audio, msg.Payload, msg.Body, nullString(msg.Room))
	if a := msg.Attachment; a != nil {
		aid := m.exec(`INSERT INTO attachment (filename, mime_type, transfer_name) VALUES (?, ?, ?)`,
			nullString(a.Filename), nullString(a.MIMEType), nullString(a.TransferName))
		m.exec(`INSERT INTO message_attachment_join (message_id, attachment_id) VALUES (?, ?)`, id, aid)
	}
	return id
}

// Text is shorthand for a received iMessage from handle.
func (m *Messages) Text(handle int64, text string) int64 {
	m.t.Helper()
	return m.Insert(Message{Text: text, Handle: handle})
}

// AddressBookDB is a fixture AddressBook-v22.abcddb.
type AddressBookDB struct {
	*DB
	next int64
}

// NewAddressBook creates an address book at dir/rel, for example
// "Sources/ABC/AddressBook-v22.abcddb".
func NewAddressBook(t testing.TB, dir, rel string) *AddressBookDB {
	t.Helper()
	return &AddressBookDB{DB: open(t, filepath.Join(dir, rel), SchemaAddressBook)}
}

// Person inserts a record with the given phone numbers and email addresses.
func (a *AddressBookDB) Person(first, last string, phones, emails []string) {
	a.t.Helper()
	a.next++
	owner := a.next
	a.exec(`INSERT INTO ZABCDRECORD (Z_PK, ZFIRSTNAME, ZLASTNAME) VALUES (?, ?, ?)`, owner, nullString(first), nullString(last))
	for _, p := range phones {
		a.exec(`INSERT INTO ZABCDPHONENUMBER (ZOWNER, ZFULLNUMBER) VALUES (?, ?)`, owner, p)
	}
	for _, e := range emails {
		a.exec(`INSERT INTO ZABCDEMAILADDRESS (ZOWNER, ZADDRESS) VALUES (?, ?)`, owner, e)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
