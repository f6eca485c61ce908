package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/domain"
)

// DefaultPollInterval matches the five second refresh of the web client.
const DefaultPollInterval = 5 * time.Second

// Poller is the pull Subscriber: it re-lists the Source every interval.
type Poller struct {
	source   Source
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(source Source, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{source: source, interval: interval, log: log}
}

func (p *Poller) Subscribe(ctx context.Context, conversationID, sinceID int64) (<-chan *domain.Message, error) {
	out := make(chan *domain.Message, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		last := sinceID
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			msgs, err := p.source.ListMessages(ctx, conversationID, last)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// next tick retries
				p.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("poll failed")
				continue
			}
			var ok bool
			if last, ok = forward(ctx, out, msgs, last); !ok {
				return
			}
		}
	}()
	return out, nil
}
