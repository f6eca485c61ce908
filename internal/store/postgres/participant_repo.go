package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenismatch/internal/domain"
)

type ParticipantRepo struct {
	db *sql.DB
}

func NewParticipantRepo(db *sql.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

func (r *ParticipantRepo) Get(ctx context.Context, conversationID, userID int64) (*domain.ConversationParticipant, error) {
	p := &domain.ConversationParticipant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT conversation_id, user_id, last_read_at, is_archived, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&p.ConversationID, &p.UserID, &p.LastReadAt, &p.IsArchived, &p.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (r *ParticipantRepo) ListIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY user_id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ParticipantRepo) MarkRead(ctx context.Context, conversationID, userID int64, upto time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_at = GREATEST(COALESCE(last_read_at, '-infinity'::timestamptz), $3)
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, upto)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
