package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jackwhot/jackwhot-service/internal/models"
)

// InsertChatMessage persists one room chat line.
func InsertChatMessage(ctx context.Context, roomID, username, message string) error {
	q := `INSERT INTO chat_messages (room_id, username, message, sent_at)
	      VALUES ($1, $2, $3, NOW())`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, roomID, username, message)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// GetChatHistory pages backwards through a room's chat: messages strictly
// older than before, newest first, at most limit rows.
func GetChatHistory(ctx context.Context, roomID string, before time.Time, limit int) ([]models.ChatRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now()
	}

	q := `
	SELECT id, room_id, username, message, sent_at
	FROM chat_messages
	WHERE room_id = $1 AND sent_at < $2
	ORDER BY sent_at DESC
	LIMIT $3
	`
	rows, err := DB.Query(ctx, q, roomID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history query: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatRecord
	for rows.Next() {
		var m models.ChatRecord
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Username, &m.Message, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
