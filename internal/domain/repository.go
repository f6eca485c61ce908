package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// ConversationRepository defines persistence operations for conversations.
// Lookups return (nil, nil) when nothing matches.
type ConversationRepository interface {
	// FindDirect returns the first conversation (lowest id) both users
	// participate in.
	FindDirect(ctx context.Context, pair Pair) (*Conversation, error)
	// CreateDirect inserts c and both participant rows atomically. If another
	// conversation already holds the pair, it is loaded into c and created is false.
	CreateDirect(ctx context.Context, c *Conversation) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64, includeArchived bool) ([]*ConversationSummary, error)
	ArchiveInactive(ctx context.Context, before time.Time) (int64, error)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	// Append inserts m, bumps the conversation's last activity to m.CreatedAt
	// and unarchives it for both participants, in one transaction. ID and
	// CreatedAt are assigned by the store.
	Append(ctx context.Context, m *Message) error
	ListSince(ctx context.Context, conversationID, sinceID int64) ([]*Message, error)
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	Get(ctx context.Context, conversationID, userID int64) (*ConversationParticipant, error)
	ListIDs(ctx context.Context, conversationID int64) ([]int64, error)
	// MarkRead moves last_read_at forward to upto; it never moves it back.
	MarkRead(ctx context.Context, conversationID, userID int64, upto time.Time) error
}
