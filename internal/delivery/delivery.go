// Package delivery gets newly appended messages to open conversation views.
// A Subscriber yields the messages of one conversation with id greater than
// a starting point, in increasing id order, until its context is cancelled.
// Deployments choose one Subscriber: the Poller pulls on an interval, the
// Pusher reacts to Broker wakeups.
package delivery

import (
	"context"

	"tenismatch/internal/domain"
)

// Source lists the messages of a conversation with id greater than sinceID,
// in (created_at, id) order.
type Source interface {
	ListMessages(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error)

func (f SourceFunc) ListMessages(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error) {
	return f(ctx, conversationID, sinceID)
}

// Subscriber opens a live feed of new messages. The returned channel is
// closed once ctx is done. Resuming with the last seen id after a
// disconnect gives at-least-once delivery across reconnects.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationID, sinceID int64) (<-chan *domain.Message, error)
}

// forward sends the messages newer than last on out and returns the new
// high-water mark. It stops early when ctx is done.
func forward(ctx context.Context, out chan<- *domain.Message, msgs []*domain.Message, last int64) (int64, bool) {
	for _, m := range msgs {
		if m.ID <= last {
			continue
		}
		select {
		case out <- m:
			last = m.ID
		case <-ctx.Done():
			return last, false
		}
	}
	return last, true
}
