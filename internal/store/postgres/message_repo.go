package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tenismatch/internal/domain"
)

type MessageRepo struct {
	db     *sql.DB
	notify bool
}

// NewMessageRepo returns the message log. With notify set every append also
// issues pg_notify on NotifyChannel as part of its transaction.
func NewMessageRepo(db *sql.DB, notify bool) *MessageRepo {
	return &MessageRepo{db: db, notify: notify}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Notification is the NotifyChannel payload.
type Notification struct {
	ConversationID int64 `json:"conversation_id"`
	MessageID      int64 `json:"id"`
}

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// The row lock taken here serializes appends per conversation, so
	// message ids and timestamps grow together.
	err = tx.QueryRowContext(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(clock_timestamp(), COALESCE(last_message_at, '-infinity'::timestamptz))
		WHERE id = $1
		RETURNING last_message_at
	`, m.ConversationID).Scan(&m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %d: %w", m.ConversationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("bump conversation: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.Body, m.CreatedAt).Scan(&m.ID); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation_participants SET is_archived = FALSE
		WHERE conversation_id = $1 AND is_archived
	`, m.ConversationID); err != nil {
		return fmt.Errorf("unarchive conversation: %w", err)
	}

	if r.notify {
		payload, _ := json.Marshal(Notification{ConversationID: m.ConversationID, MessageID: m.ID})
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListSince(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1 AND id > $2
		ORDER BY created_at ASC, id ASC
	`, conversationID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	res := []*domain.Message{}
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return res, nil
}
