package store

import (
	"strings"

	"github.com/dkzef/chirp/internal/delivery"
)

// SearchMessages runs a full text search over message bodies, newest first.
// The query is quoted per token so user input cannot break FTS syntax.
func (db *DB) SearchMessages(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT m.id, m.chat_id, m.msg_id, m.sender_id, m.sender_name, m.body,
			m.message_type, m.from_me, m.status, m.edited, m.timestamp,
			snippet(messages_fts, 0, '[', ']', '…', 12)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY m.timestamp DESC
		LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var status string
		if err := rows.Scan(&r.Message.ID, &r.Message.ChatID, &r.Message.MsgID,
			&r.Message.SenderID, &r.Message.SenderName, &r.Message.Body,
			&r.Message.MessageType, &r.Message.FromMe, &status,
			&r.Message.Edited, &r.Message.Timestamp, &r.Snippet); err != nil {
			return nil, err
		}
		r.Message.Status = delivery.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery turns free text into an implicit-AND prefix query, quoting each
// token so punctuation is treated literally.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		parts = append(parts, `"`+f+`"*`)
	}
	return strings.Join(parts, " ")
}
