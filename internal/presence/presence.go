// Package presence keeps advisory online and typing indicators. Nothing
// here is durable and no other component depends on it being right.
package presence

import (
	"context"
	"time"
)

const (
	DefaultTypingTTL = 5 * time.Second
	DefaultOnlineTTL = 60 * time.Second
)

type Tracker interface {
	// Touch marks the user online for the online TTL.
	Touch(ctx context.Context, userID int64) error
	// Leave drops the user's online mark.
	Leave(ctx context.Context, userID int64) error
	// SetTyping marks the user as typing in the conversation for the typing TTL.
	SetTyping(ctx context.Context, conversationID, userID int64) error
	// Online reports which of the given users are online.
	Online(ctx context.Context, userIDs []int64) (map[int64]bool, error)
	// Typing lists the users currently typing in the conversation, ascending.
	Typing(ctx context.Context, conversationID int64) ([]int64, error)
}
