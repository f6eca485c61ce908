package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/domain"
)

// DefaultResyncInterval bounds how long a lost wakeup can delay delivery.
const DefaultResyncInterval = 30 * time.Second

// Pusher is the push Subscriber. It registers with the Broker before the
// initial backfill, so a message committed between the two is still seen,
// and fetches from the last delivered id on every wakeup.
type Pusher struct {
	source Source
	broker *Broker
	resync time.Duration
	log    zerolog.Logger
}

func NewPusher(source Source, broker *Broker, resync time.Duration, log zerolog.Logger) *Pusher {
	if resync <= 0 {
		resync = DefaultResyncInterval
	}
	return &Pusher{source: source, broker: broker, resync: resync, log: log}
}

func (p *Pusher) Subscribe(ctx context.Context, conversationID, sinceID int64) (<-chan *domain.Message, error) {
	wake, unregister := p.broker.Register(conversationID)

	backlog, err := p.source.ListMessages(ctx, conversationID, sinceID)
	if err != nil {
		unregister()
		return nil, err
	}

	out := make(chan *domain.Message, 16)
	go func() {
		defer close(out)
		defer unregister()

		last, ok := forward(ctx, out, backlog, sinceID)
		if !ok {
			return
		}

		ticker := time.NewTicker(p.resync)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-ticker.C:
			}
			msgs, err := p.source.ListMessages(ctx, conversationID, last)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("push fetch failed")
				continue
			}
			if last, ok = forward(ctx, out, msgs, last); !ok {
				return
			}
		}
	}()
	return out, nil
}
