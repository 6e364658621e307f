package store

import (
	"context"
	"fmt"
)

// ConversationRows returns the distinct senders and chats of received
// messages, most recent first. Only iMessage rows are returned unless
// allServices is set.
func (db *DB) ConversationRows(ctx context.Context, allServices bool) ([]ConversationRow, error) {
	q := `
		SELECT DISTINCT message.date, COALESCE(handle.id, ''), COALESCE(chat.chat_identifier, ''),
			COALESCE(chat.display_name, ''), COALESCE(chat.style, 0)
		FROM message
		LEFT OUTER JOIN chat ON chat.room_name = message.cache_roomnames
		LEFT OUTER JOIN handle ON handle.ROWID = message.handle_id
		WHERE message.is_from_me = 0`
	if !allServices {
		q += ` AND message.service = 'iMessage'`
	}
	q += ` ORDER BY message.date DESC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("conversation rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ConversationRow
	for rows.Next() {
		var r ConversationRow
		if err := rows.Scan(&r.Date, &r.Handle, &r.ChatIdentifier, &r.DisplayName, &r.Style); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
