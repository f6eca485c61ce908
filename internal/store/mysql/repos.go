package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tenismatch/internal/domain"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	row := userRow{
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		HashedPassword: u.HashedPassword,
		IsActive:       u.IsActive,
		CreatedAt:      now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, u.CreatedAt = row.ID, row.CreatedAt
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepo) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(cond, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &domain.User{
		ID:             row.ID,
		Username:       row.Username,
		DisplayName:    row.DisplayName,
		HashedPassword: row.HashedPassword,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
	}, nil
}

type ConversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (row conversationRow) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:            row.ID,
		CreatorID:     row.CreatorID,
		AdID:          row.AdID,
		UserLowID:     row.UserLowID,
		UserHighID:    row.UserHighID,
		LastMessageAt: row.LastMessageAt,
		CreatedAt:     row.CreatedAt,
	}
}

func (r *ConversationRepo) FindDirect(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	var row conversationRow
	err := r.db.WithContext(ctx).
		Table("conversations AS c").
		Select("c.*").
		Joins("JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = ?", pair.Low).
		Joins("JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = ?", pair.High).
		Order("c.id ASC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ConversationRepo) CreateDirect(ctx context.Context, c *domain.Conversation) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := conversationRow{
			CreatorID:  c.CreatorID,
			AdID:       c.AdID,
			UserLowID:  c.UserLowID,
			UserHighID: c.UserHighID,
			CreatedAt:  now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing conversationRow
			if err := tx.Where("user_low_id = ? AND user_high_id = ?", c.UserLowID, c.UserHighID).
				Take(&existing).Error; err != nil {
				return fmt.Errorf("reload conversation: %w", err)
			}
			*c = *existing.toDomain()
			return nil
		}

		parts := []participantRow{
			{ConversationID: row.ID, UserID: row.UserLowID, JoinedAt: row.CreatedAt},
			{ConversationID: row.ID, UserID: row.UserHighID, JoinedAt: row.CreatedAt},
		}
		if err := tx.Create(&parts).Error; err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		*c = *row.toDomain()
		created = true
		return nil
	})
	return created, err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	var row conversationRow
	err := r.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return row.toDomain(), nil
}

type summaryRow struct {
	conversationRow
	PLastReadAt *time.Time `gorm:"column:p_last_read_at"`
	PIsArchived bool       `gorm:"column:p_is_archived"`
	Unread      int        `gorm:"column:unread"`
	LmID        *int64     `gorm:"column:lm_id"`
	LmSenderID  *int64     `gorm:"column:lm_sender_id"`
	LmBody      *string    `gorm:"column:lm_body"`
	LmCreatedAt *time.Time `gorm:"column:lm_created_at"`
}

func (row summaryRow) lastMessage() *domain.Message {
	if row.LmID == nil || row.LmCreatedAt == nil {
		return nil
	}
	m := &domain.Message{ID: *row.LmID, ConversationID: row.ID, CreatedAt: *row.LmCreatedAt}
	if row.LmSenderID != nil {
		m.SenderID = *row.LmSenderID
	}
	if row.LmBody != nil {
		m.Body = *row.LmBody
	}
	return m
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, includeArchived bool) ([]*domain.ConversationSummary, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.*, p.last_read_at AS p_last_read_at, p.is_archived AS p_is_archived,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id <> p.user_id
			   AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)) AS unread,
			lm.id AS lm_id, lm.sender_id AS lm_sender_id, lm.body AS lm_body, lm.created_at AS lm_created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = ?
		LEFT JOIN messages lm ON lm.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		WHERE (? OR p.is_archived = FALSE)
		ORDER BY c.last_message_at IS NULL, c.last_message_at DESC, c.id DESC
	`, userID, includeArchived).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	res := make([]*domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		c := row.toDomain()
		res = append(res, &domain.ConversationSummary{
			Conversation: *c,
			OtherUserID:  c.OtherParticipant(userID),
			UnreadCount:  row.Unread,
			LastReadAt:   row.PLastReadAt,
			IsArchived:   row.PIsArchived,
			LastMessage:  row.lastMessage(),
		})
	}
	return res, nil
}

func (r *ConversationRepo) ArchiveInactive(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		SET p.is_archived = TRUE
		WHERE p.is_archived = FALSE
		  AND c.last_message_at IS NOT NULL
		  AND c.last_message_at < ?
	`, before.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("archive inactive: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv conversationRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&conv, m.ConversationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("conversation %d: %w", m.ConversationID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}

		at := now()
		if conv.LastMessageAt != nil && conv.LastMessageAt.After(at) {
			at = conv.LastMessageAt.UTC()
		}
		if err := tx.Model(&conversationRow{}).Where("id = ?", conv.ID).
			Update("last_message_at", at).Error; err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}

		row := messageRow{ConversationID: m.ConversationID, SenderID: m.SenderID, Body: m.Body, CreatedAt: at}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if err := tx.Model(&participantRow{}).
			Where("conversation_id = ? AND is_archived = ?", conv.ID, true).
			Update("is_archived", false).Error; err != nil {
			return fmt.Errorf("unarchive conversation: %w", err)
		}
		m.ID, m.CreatedAt = row.ID, row.CreatedAt
		return nil
	})
}

func (r *MessageRepo) ListSince(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error) {
	var rows []messageRow
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id > ?", conversationID, sinceID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	res := make([]*domain.Message, 0, len(rows))
	for _, row := range rows {
		res = append(res, &domain.Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Body:           row.Body,
			CreatedAt:      row.CreatedAt,
		})
	}
	return res, nil
}

type ParticipantRepo struct {
	db *gorm.DB
}

func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

func (r *ParticipantRepo) Get(ctx context.Context, conversationID, userID int64) (*domain.ConversationParticipant, error) {
	var row participantRow
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &domain.ConversationParticipant{
		ConversationID: row.ConversationID,
		UserID:         row.UserID,
		LastReadAt:     row.LastReadAt,
		IsArchived:     row.IsArchived,
		JoinedAt:       row.JoinedAt,
	}, nil
}

func (r *ParticipantRepo) ListIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&participantRow{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return ids, nil
}

func (r *ParticipantRepo) MarkRead(ctx context.Context, conversationID, userID int64, upto time.Time) error {
	upto = upto.UTC().Truncate(time.Microsecond)
	if err := r.db.WithContext(ctx).Model(&participantRow{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Where("last_read_at IS NULL OR last_read_at < ?", upto).
		Update("last_read_at", upto).Error; err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
