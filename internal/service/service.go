package service

import (
	"context"
	"errors"
	"fmt"

	"tenismatch/internal/domain"
)

// classify passes domain sentinels through and reports every other
// repository failure as ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		domain.ErrInvalidInput,
		domain.ErrUnauthorized,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrStoreUnavailable,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}

// authorize loads the conversation and checks that userID is one of its two
// participants.
func authorize(ctx context.Context, convs domain.ConversationRepository, conversationID, userID int64) (*domain.Conversation, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("%w: conversation id must be positive", domain.ErrInvalidInput)
	}
	conv, err := convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, classify("get conversation", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("user %d in conversation %d: %w", userID, conversationID, domain.ErrUnauthorized)
	}
	return conv, nil
}
