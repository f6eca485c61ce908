package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tenismatch/internal/delivery"
	"tenismatch/internal/domain"
)

var ErrClosed = errors.New("timeline session closed")

// Backend is the messaging API as seen by a client.
type Backend interface {
	ListMessages(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error)
	SendMessage(ctx context.Context, conversationID int64, body string) (*domain.Message, error)
}

// Session binds a Timeline to an open conversation view: history load,
// live subscription and optimistic sends.
type Session struct {
	backend        Backend
	conversationID int64
	userID         int64
	tl             *Timeline
	updates        chan struct{}

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Open loads the full history, then subscribes from the last message seen.
func Open(ctx context.Context, backend Backend, sub delivery.Subscriber, conversationID, userID int64) (*Session, error) {
	history, err := backend.ListMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	s := &Session{
		backend:        backend,
		conversationID: conversationID,
		userID:         userID,
		tl:             New(),
		updates:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	s.tl.Merge(history...)

	subCtx, cancel := context.WithCancel(ctx)
	feed, err := sub.Subscribe(subCtx, conversationID, s.tl.LastSeenID())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	s.cancel = cancel

	go func() {
		defer close(s.done)
		for m := range feed {
			if len(s.tl.Merge(m)) > 0 {
				s.notify()
			}
		}
	}()
	return s, nil
}

func (s *Session) Timeline() *Timeline {
	return s.tl
}

// Updates signals, coalesced, that the timeline changed.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Send shows body as pending, then appends it. On success the pending entry
// becomes the confirmed row; on failure it is removed and the error is
// returned for the user to retry by hand. A send still in flight when the
// session closes completes but leaves the timeline alone.
func (s *Session) Send(ctx context.Context, body string) (*domain.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	token := s.tl.AddPending(s.conversationID, s.userID, body)
	s.mu.Unlock()
	s.notify()

	m, err := s.backend.SendMessage(ctx, s.conversationID, body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return m, err
	}
	if err != nil {
		s.tl.Fail(token)
		s.notify()
		return nil, err
	}
	s.tl.Confirm(token, m)
	s.notify()
	return m, nil
}

// Close tears down the subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
}
