package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenismatch/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `c.id, c.creator_id, c.ad_id, c.user_low_id, c.user_high_id, c.last_message_at, c.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner, extra ...any) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	dest := append([]any{
		&c.ID, &c.CreatorID, &c.AdID, &c.UserLowID, &c.UserHighID, &c.LastMessageAt, &c.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = $1
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = $2
		ORDER BY c.id ASC
		LIMIT 1
	`, pair.Low, pair.High))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return c, nil
}

// CreateDirect relies on conversations_pair_key: of two racing inserts for
// the same pair exactly one returns a row, the other re-reads the winner
// once its transaction has committed.
func (r *ConversationRepo) CreateDirect(ctx context.Context, c *domain.Conversation) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (creator_id, ad_id, user_low_id, user_high_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT conversations_pair_key DO NOTHING
		RETURNING id, created_at
	`, c.CreatorID, c.AdID, c.UserLowID, c.UserHighID).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := scanConversation(tx.QueryRowContext(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations c
			WHERE c.user_low_id = $1 AND c.user_high_id = $2
		`, c.UserLowID, c.UserHighID))
		if err != nil {
			return false, fmt.Errorf("reload conversation: %w", err)
		}
		*c = *existing
		return false, tx.Commit()
	}
	if err != nil {
		return false, fmt.Errorf("insert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
		VALUES ($1, $2, $4), ($1, $3, $4)
	`, c.ID, c.UserLowID, c.UserHighID, c.CreatedAt); err != nil {
		return false, fmt.Errorf("insert participants: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	c.LastMessageAt = nil
	return true, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, includeArchived bool) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`, p.last_read_at, p.is_archived,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id <> p.user_id
			   AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)) AS unread,
			lm.id, lm.sender_id, lm.body, lm.created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		LEFT JOIN messages lm ON lm.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		WHERE ($2 OR NOT p.is_archived)
		ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC
	`, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.ConversationSummary
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var last lastMessageScan
		c, err := scanConversation(rows, append([]any{&s.LastReadAt, &s.IsArchived, &s.UnreadCount}, last.dest()...)...)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		s.Conversation = *c
		s.OtherUserID = c.OtherParticipant(userID)
		s.LastMessage = last.message(c.ID)
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return res, nil
}

// lastMessageScan receives the nullable columns of a LEFT JOINed message.
type lastMessageScan struct {
	id, senderID sql.NullInt64
	body         sql.NullString
	createdAt    *time.Time
}

func (l *lastMessageScan) dest() []any {
	return []any{&l.id, &l.senderID, &l.body, &l.createdAt}
}

func (l *lastMessageScan) message(conversationID int64) *domain.Message {
	if !l.id.Valid || l.createdAt == nil {
		return nil
	}
	return &domain.Message{
		ID:             l.id.Int64,
		ConversationID: conversationID,
		SenderID:       l.senderID.Int64,
		Body:           l.body.String,
		CreatedAt:      *l.createdAt,
	}
}

func (r *ConversationRepo) ArchiveInactive(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants p
		SET is_archived = TRUE
		FROM conversations c
		WHERE c.id = p.conversation_id
		  AND NOT p.is_archived
		  AND c.last_message_at IS NOT NULL
		  AND c.last_message_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("archive inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
