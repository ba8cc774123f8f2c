package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dkzef/chirp/internal/delivery"
)

// UpsertMessage inserts or updates a message (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, sender_id, sender_name, body,
			message_type, from_me, status, edited, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			status = excluded.status,
			edited = excluded.edited`,
		m.ChatID, m.MsgID, m.SenderID, m.SenderName, m.Body,
		m.MessageType, m.FromMe, string(m.Status), m.Edited, m.Timestamp, now)
	return err
}

// ListMessages returns messages for a chat using keyset pagination by timestamp.
func (db *DB) ListMessages(chatID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, chat_id, msg_id, sender_id, sender_name, body,
			message_type, from_me, status, edited, timestamp
		FROM messages
		WHERE chat_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.MsgID, &m.SenderID, &m.SenderName,
			&m.Body, &m.MessageType, &m.FromMe, &m.Status, &m.Edited, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a message by its msg_id, or nil if unknown.
func (db *DB) GetMessage(msgID string) (*Message, error) {
	var m Message
	err := db.QueryRow(`
		SELECT id, chat_id, msg_id, sender_id, sender_name, body,
			message_type, from_me, status, edited, timestamp
		FROM messages WHERE msg_id = ?`, msgID).
		Scan(&m.ID, &m.ChatID, &m.MsgID, &m.SenderID, &m.SenderName,
			&m.Body, &m.MessageType, &m.FromMe, &m.Status, &m.Edited, &m.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMessageStatus updates a message's delivery status in place.
func (db *DB) SetMessageStatus(msgID string, status delivery.Status) error {
	res, err := db.Exec(`UPDATE messages SET status = ? WHERE msg_id = ?`, string(status), msgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %q not found", msgID)
	}
	return nil
}

// ReconcileMessageID repoints a message from its client-local id to the
// server-assigned id and applies the acknowledged status. The row identity
// (and therefore its list position) is unchanged.
func (db *DB) ReconcileMessageID(clientMsgID, serverMsgID string, status delivery.Status) error {
	res, err := db.Exec(`
		UPDATE messages SET msg_id = ?, status = ? WHERE msg_id = ?`,
		serverMsgID, string(status), clientMsgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %q not found", clientMsgID)
	}
	return nil
}

// MarkMessageEdited replaces a message's body and sets the edited flag.
func (db *DB) MarkMessageEdited(msgID, body string) error {
	res, err := db.Exec(`
		UPDATE messages SET body = ?, edited = 1 WHERE msg_id = ?`, body, msgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %q not found", msgID)
	}
	return nil
}

// IsLastMessage reports whether msgID is the newest message in its chat.
func (db *DB) IsLastMessage(chatID, msgID string) (bool, error) {
	var newest string
	err := db.QueryRow(`
		SELECT msg_id FROM messages WHERE chat_id = ?
		ORDER BY timestamp DESC LIMIT 1`, chatID).Scan(&newest)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return newest == msgID, nil
}
