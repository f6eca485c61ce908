package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/domain"
	"tenismatch/internal/security"
)

type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	users         domain.UserRepository
	encryptor     *security.Encryptor
	log           zerolog.Logger
	now           func() time.Time
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	log zerolog.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		users:         users,
		encryptor:     encryptor,
		log:           log,
		now:           time.Now,
	}
}

// GetOrCreate returns the conversation between userA and userB, creating it
// when none exists. adID is recorded only on creation. The boolean reports
// whether this call created the conversation.
func (s *ConversationService) GetOrCreate(ctx context.Context, userA, userB int64, adID *int64) (*domain.Conversation, bool, error) {
	pair, err := domain.NewPair(userA, userB)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.conversations.FindDirect(ctx, pair)
	if err != nil {
		return nil, false, classify("find conversation", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	for _, id := range []int64{pair.Low, pair.High} {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, false, classify("get user", err)
		}
		if u == nil {
			return nil, false, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
	}

	conv := &domain.Conversation{
		CreatorID:  userA,
		AdID:       adID,
		UserLowID:  pair.Low,
		UserHighID: pair.High,
	}
	created, err := s.conversations.CreateDirect(ctx, conv)
	if err != nil {
		return nil, false, classify("create conversation", err)
	}
	return conv, created, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	return authorize(ctx, s.conversations, conversationID, userID)
}

// ListForUser returns the user's conversations, most recent activity first,
// each with its decrypted last message preview.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64, includeArchived bool) ([]*domain.ConversationSummary, error) {
	list, err := s.conversations.ListForUser(ctx, userID, includeArchived)
	if err != nil {
		return nil, classify("list conversations", err)
	}
	if list == nil {
		list = []*domain.ConversationSummary{}
	}
	for _, sum := range list {
		if sum.LastMessage != nil {
			sum.LastMessage.Body = openBody(s.encryptor, s.log, sum.LastMessage)
		}
	}
	return list, nil
}

func (s *ConversationService) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	ids, err := s.participants.ListIDs(ctx, conversationID)
	if err != nil {
		return nil, classify("list participants", err)
	}
	return ids, nil
}

// MarkRead records that userID has read the conversation up to upto. A zero
// or future upto means "now". The read marker never moves backwards.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID int64, upto time.Time) (time.Time, error) {
	if _, err := authorize(ctx, s.conversations, conversationID, userID); err != nil {
		return time.Time{}, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	if upto.IsZero() || upto.After(now) {
		upto = now
	}
	if err := s.participants.MarkRead(ctx, conversationID, userID, upto); err != nil {
		return time.Time{}, classify("mark read", err)
	}
	return upto, nil
}
