package store

import (
	"context"
	"fmt"
)

// MaxRowID returns the highest message ROWID, or 0 for an empty table.
func (db *DB) MaxRowID(ctx context.Context) (int64, error) {
	var maxID int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ROWID), 0) FROM message`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("max rowid: %w", err)
	}
	return maxID, nil
}

const threadSelect = `
	SELECT DISTINCT message.ROWID, COALESCE(handle.id, ''), COALESCE(message.text, ''),
		message.is_from_me, message.date, message.associated_message_type, message.item_type,
		message.is_audio_message, message.payload_data IS NOT NULL, message.attributedBody,
		COALESCE(attachment.filename, ''), COALESCE(attachment.mime_type, ''),
		COALESCE(attachment.transfer_name, '')
	FROM message
	LEFT OUTER JOIN chat ON chat.room_name = message.cache_roomnames
	LEFT OUTER JOIN handle ON handle.ROWID = message.handle_id
	LEFT OUTER JOIN message_attachment_join ON message_attachment_join.message_id = message.ROWID
	LEFT OUTER JOIN attachment ON attachment.ROWID = message_attachment_join.attachment_id`

// RecentMessages returns up to q.Limit of the newest messages in one
// conversation, newest first.
func (db *DB) RecentMessages(ctx context.Context, q ThreadQuery) ([]MessageRow, error) {
	if q.Limit <= 0 {
		q.Limit = 500
	}
	where := ` WHERE handle.id = ?`
	if q.Group {
		where = ` WHERE chat.chat_identifier = ?`
	}
	if !q.AllServices {
		where += ` AND message.service = 'iMessage'`
	}
	rows, err := db.QueryContext(ctx, threadSelect+where+` ORDER BY message.date DESC LIMIT ?`, q.Target, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.RowID, &m.SenderHandle, &m.Text, &m.IsFromMe, &m.Date,
			&m.AssociatedMessageType, &m.ItemType, &m.IsAudio, &m.PayloadPresent, &m.AttributedBody,
			&m.Attachment.Filename, &m.Attachment.MIMEType, &m.Attachment.TransferName); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
