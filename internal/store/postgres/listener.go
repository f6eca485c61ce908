package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Listener holds a dedicated connection on NotifyChannel and reports every
// append committed by any server instance.
type Listener struct {
	dsn     string
	handle  func(Notification)
	backoff time.Duration
	log     zerolog.Logger
}

func NewListener(dsn string, handle func(Notification), log zerolog.Logger) *Listener {
	return &Listener{
		dsn:     dsn,
		handle:  handle,
		backoff: time.Second,
		log:     log.With().Str("component", "pg_listener").Logger(),
	}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
// Notifications sent while disconnected are lost; subscribers recover them
// on their resync tick.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn().Err(err).Dur("retry_in", l.backoff).Msg("listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info().Str("channel", NotifyChannel).Msg("listening")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		var note Notification
		if err := json.Unmarshal([]byte(n.Payload), &note); err != nil {
			l.log.Warn().Err(err).Str("payload", n.Payload).Msg("bad notification")
			continue
		}
		l.handle(note)
	}
}
