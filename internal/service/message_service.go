package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tenismatch/internal/domain"
	"tenismatch/internal/security"
)

// DefaultMaxMessageLength is the body limit in characters.
const DefaultMaxMessageLength = 500

// Notifier is told about every committed message.
type Notifier interface {
	Publish(m *domain.Message)
}

type MessageService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	encryptor     *security.Encryptor
	notifier      Notifier
	log           zerolog.Logger

	MaxMessageLength int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	encryptor *security.Encryptor,
	notifier Notifier,
	log zerolog.Logger,
) *MessageService {
	return &MessageService{
		conversations:    conversations,
		messages:         messages,
		encryptor:        encryptor,
		notifier:         notifier,
		log:              log,
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

// Append checks that senderID participates in the conversation, validates
// body and appends it to the conversation log. The participant check runs
// before body validation. Nothing is written when either check fails.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID int64, body string) (*domain.Message, error) {
	if _, err := authorize(ctx, s.conversations, conversationID, senderID); err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is empty", domain.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(body); n > s.MaxMessageLength {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", domain.ErrInvalidInput, s.MaxMessageLength)
	}

	sealed, err := s.encryptor.Encrypt(body)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}
	m := &domain.Message{ConversationID: conversationID, SenderID: senderID, Body: sealed}
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, classify("append message", err)
	}
	m.Body = body

	s.log.Debug().
		Int64("conversation_id", conversationID).
		Int64("message_id", m.ID).
		Int64("sender_id", senderID).
		Msg("message appended")

	if s.notifier != nil {
		s.notifier.Publish(m)
	}
	return m, nil
}

// List returns the messages of a conversation the user participates in with
// id greater than sinceID, in (created_at, id) order. sinceID 0 returns the
// whole history.
func (s *MessageService) List(ctx context.Context, conversationID, userID, sinceID int64) ([]*domain.Message, error) {
	if sinceID < 0 {
		return nil, fmt.Errorf("%w: since_id must not be negative", domain.ErrInvalidInput)
	}
	if _, err := authorize(ctx, s.conversations, conversationID, userID); err != nil {
		return nil, err
	}
	return s.ListSince(ctx, conversationID, sinceID)
}

// ListSince is List without the participant check, for subscriptions that
// were authorized when they were opened.
func (s *MessageService) ListSince(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error) {
	msgs, err := s.messages.ListSince(ctx, conversationID, sinceID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	for _, m := range msgs {
		m.Body = s.open(m)
	}
	return msgs, nil
}

func (s *MessageService) open(m *domain.Message) string {
	return openBody(s.encryptor, s.log, m)
}

// openBody decrypts a stored body. Rows written before encryption was
// enabled are returned as stored.
func openBody(enc *security.Encryptor, log zerolog.Logger, m *domain.Message) string {
	if enc == nil {
		return m.Body
	}
	plain, err := enc.Decrypt(m.Body)
	if err != nil {
		log.Warn().Int64("message_id", m.ID).Msg("message body not decryptable, returning raw")
		return m.Body
	}
	return plain
}
