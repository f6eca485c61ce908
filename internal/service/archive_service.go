package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/domain"
)

// ArchiveService hides conversations that have been quiet for a while. A new
// message brings them back.
type ArchiveService struct {
	conversations domain.ConversationRepository
	log           zerolog.Logger
	now           func() time.Time
}

func NewArchiveService(conversations domain.ConversationRepository, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{conversations: conversations, log: log, now: time.Now}
}

// ArchiveStale archives, for both participants, every conversation whose
// last message is older than olderThan. It returns the number of
// participant rows changed.
func (s *ArchiveService) ArchiveStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: archive age must be positive", domain.ErrInvalidInput)
	}
	cutoff := s.now().Add(-olderThan)
	n, err := s.conversations.ArchiveInactive(ctx, cutoff)
	if err != nil {
		return 0, classify("archive conversations", err)
	}
	s.log.Info().Time("cutoff", cutoff).Int64("archived", n).Msg("archived stale conversations")
	return n, nil
}
