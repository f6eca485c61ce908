package sqlite

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
		&c.ID,
		&c.CreatorID,
		&c.AdID,
		&c.UserLowID,
		&c.UserHighID,
		&c.LastMessageAt,
		&c.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = ?
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = ?
		ORDER BY c.id ASC
		LIMIT 1
	`
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, pair.Low, pair.High))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) CreateDirect(ctx context.Context, c *domain.Conversation) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created := now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (creator_id, ad_id, user_low_id, user_high_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_low_id, user_high_id) DO NOTHING
	`, c.CreatorID, c.AdID, c.UserLowID, c.UserHighID, created)
	if err != nil {
		return false, fmt.Errorf("insert conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		existing, err := scanConversation(tx.QueryRowContext(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations c
			WHERE c.user_low_id = ? AND c.user_high_id = ?
		`, c.UserLowID, c.UserHighID))
		if err != nil {
			return false, fmt.Errorf("reload conversation: %w", err)
		}
		*c = *existing
		return false, tx.Commit()
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	for _, uid := range []int64{c.UserLowID, c.UserHighID} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
			VALUES (?, ?, ?)
		`, id, uid, created); err != nil {
			return false, fmt.Errorf("insert participant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	c.ID = id
	c.CreatedAt = created
	c.LastMessageAt = nil
	return true, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE c.id = ?
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
	query := `
		SELECT ` + conversationColumns + `, p.last_read_at, p.is_archived,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id <> p.user_id
			   AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)) AS unread,
			lm.id, lm.sender_id, lm.body, lm.created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = ?
		LEFT JOIN messages lm ON lm.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		WHERE (? OR p.is_archived = 0)
		ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, includeArchived)
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
		UPDATE conversation_participants
		SET is_archived = 1
		WHERE is_archived = 0
		  AND conversation_id IN (
			SELECT id FROM conversations
			WHERE last_message_at IS NOT NULL AND last_message_at < ?
		  )
	`, utc(before))
	if err != nil {
		return 0, fmt.Errorf("archive inactive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
