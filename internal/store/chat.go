package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertChat inserts or updates a full chat summary (backend read path).
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, name, is_group, is_pinned, is_muted, unread_count,
			last_message_at, last_message_preview, last_message_type,
			last_message_sender, last_message_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_group = excluded.is_group,
			is_pinned = excluded.is_pinned,
			is_muted = excluded.is_muted,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			last_message_type = excluded.last_message_type,
			last_message_sender = excluded.last_message_sender,
			last_message_status = excluded.last_message_status,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.IsGroup, c.IsPinned, c.IsMuted, c.UnreadCount,
		c.LastMessageAt, c.LastMessagePreview, c.LastMessageType,
		c.LastMessageSender, c.LastMessageStatus, now)
	return err
}

// TouchChatLastMessage updates a chat's denormalized last-message snapshot
// if m is at least as new as the current one, creating the chat row when it
// does not exist yet. Pinned/muted/unread are left alone.
func (db *DB) TouchChatLastMessage(m *Message, preview string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (id, last_message_at, last_message_preview,
			last_message_type, last_message_sender, last_message_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_preview ELSE chats.last_message_preview END,
			last_message_type = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_type ELSE chats.last_message_type END,
			last_message_sender = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_sender ELSE chats.last_message_sender END,
			last_message_status = CASE WHEN excluded.last_message_at >= chats.last_message_at THEN excluded.last_message_status ELSE chats.last_message_status END,
			updated_at = excluded.updated_at`,
		m.ChatID, m.Timestamp, preview, m.MessageType, m.SenderName, string(m.Status), now)
	return err
}

// SetChatLastMessageStatus updates only the snapshot status, used when a
// delivery event lands on the chat's newest message.
func (db *DB) SetChatLastMessageStatus(chatID, status string) error {
	_, err := db.Exec(`UPDATE chats SET last_message_status = ? WHERE id = ?`, status, chatID)
	return err
}

// IncrementUnread bumps the unread counter for a chat.
func (db *DB) IncrementUnread(chatID string) error {
	_, err := db.Exec(`UPDATE chats SET unread_count = unread_count + 1 WHERE id = ?`, chatID)
	return err
}

// MarkChatRead zeroes the unread counter for a chat.
func (db *DB) MarkChatRead(chatID string) error {
	_, err := db.Exec(`UPDATE chats SET unread_count = 0 WHERE id = ?`, chatID)
	return err
}

// SetChatPinned toggles the pinned flag.
func (db *DB) SetChatPinned(chatID string, pinned bool) error {
	_, err := db.Exec(`UPDATE chats SET is_pinned = ? WHERE id = ?`, pinned, chatID)
	return err
}

// SetChatMuted toggles the muted flag.
func (db *DB) SetChatMuted(chatID string, muted bool) error {
	_, err := db.Exec(`UPDATE chats SET is_muted = ? WHERE id = ?`, muted, chatID)
	return err
}

// ReplaceParticipants replaces the member list of a chat.
func (db *DB) ReplaceParticipants(chatID string, members []Participant) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM participants WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for _, p := range members {
		if _, err := tx.Exec(`
			INSERT INTO participants (chat_id, user_id, name, avatar_url)
			VALUES (?, ?, ?, ?)`,
			chatID, p.UserID, p.Name, p.AvatarURL); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return tx.Commit()
}

// ListChats returns chats sorted pinned-first, then by last message
// timestamp descending. For direct chats with no name, the display name
// falls back to the other participant's name; selfID identifies which
// participant is "me".
func (db *DB) ListChats(selfID string, limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT c.id,
			COALESCE(NULLIF(c.name,''),
				CASE WHEN c.is_group = 0 THEN
					(SELECT p.name FROM participants p
					 WHERE p.chat_id = c.id AND p.user_id != ? AND p.name != ''
					 LIMIT 1)
				END, '') AS display_name,
			c.is_group, c.is_pinned, c.is_muted, c.unread_count,
			c.last_message_at, c.last_message_preview, c.last_message_type,
			c.last_message_sender, c.last_message_status
		FROM chats c
		ORDER BY c.is_pinned DESC, c.last_message_at DESC
		LIMIT ? OFFSET ?`, selfID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &c.IsPinned, &c.IsMuted,
			&c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview,
			&c.LastMessageType, &c.LastMessageSender, &c.LastMessageStatus); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by id, or nil if not found.
func (db *DB) GetChat(id string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT id, name, is_group, is_pinned, is_muted, unread_count,
			last_message_at, last_message_preview, last_message_type,
			last_message_sender, last_message_status
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.IsGroup, &c.IsPinned, &c.IsMuted,
			&c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview,
			&c.LastMessageType, &c.LastMessageSender, &c.LastMessageStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
