package domain

import "time"

// User is the authenticated actor. Messaging only reads its id; the rest
// belongs to the auth/profile side.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Conversation is a dialogue between exactly two users. UserLowID and
// UserHighID hold the unordered pair in canonical order and carry the
// one-conversation-per-pair unique index.
type Conversation struct {
	ID            int64      `db:"id" json:"id"`
	CreatorID     int64      `db:"creator_id" json:"creator_id"`
	AdID          *int64     `db:"ad_id" json:"ad_id,omitempty"`
	UserLowID     int64      `db:"user_low_id" json:"-"`
	UserHighID    int64      `db:"user_high_id" json:"-"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the user on the other side of the conversation.
func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// ConversationParticipant represents the membership of a user in a conversation.
type ConversationParticipant struct {
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	LastReadAt     *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	IsArchived     bool       `db:"is_archived" json:"is_archived"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
}

// ConversationSummary is a row of a user's conversation list.
type ConversationSummary struct {
	Conversation
	OtherUserID int64      `json:"other_user_id"`
	UnreadCount int        `json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
	IsArchived  bool       `json:"is_archived"`
	LastMessage *Message   `json:"last_message,omitempty"`
}

// Message is one immutable entry of a conversation log. Within a conversation
// messages are ordered by (CreatedAt, ID).
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	SenderID       int64     `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"` // encrypted at rest
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Before reports whether m sorts strictly before o in conversation order.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}
