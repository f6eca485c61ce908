package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tenismatch/internal/delivery"
	"tenismatch/internal/domain"
	"tenismatch/internal/ws"
)

// Stream is a delivery.Subscriber over the server's /ws endpoint. Each
// subscription holds its own connection and redials from the last
// delivered id when the connection drops.
type Stream struct {
	client  *Client
	dialer  *websocket.Dialer
	backoff time.Duration
	log     zerolog.Logger
}

var _ delivery.Subscriber = (*Stream)(nil)

func NewStream(c *Client, log zerolog.Logger) *Stream {
	return &Stream{
		client:  c,
		dialer:  websocket.DefaultDialer,
		backoff: time.Second,
		log:     log.With().Str("component", "ws_stream").Logger(),
	}
}

func (s *Stream) wsURL() string {
	u := s.client.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// subscribeTimeout bounds the wait for the server's subscribe reply.
const subscribeTimeout = 10 * time.Second

// dial connects, subscribes and waits for the server to accept or reject the
// subscription. A rejection is returned as an *APIError.
func (s *Stream) dial(ctx context.Context, conversationID, sinceID int64) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.client.token)
	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial ws: %w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := conn.WriteJSON(ws.Event{Type: ws.EventSubscribe, ConversationID: conversationID, SinceID: sinceID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if err := awaitSubscribed(ctx, conn, conversationID); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func awaitSubscribed(ctx context.Context, conn *websocket.Conn, conversationID int64) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	_ = conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("await subscribe: %w: %v", domain.ErrStoreUnavailable, err)
		}
		if ev.ConversationID != conversationID {
			continue
		}
		switch ev.Type {
		case ws.EventSubscribed:
			return nil
		case ws.EventError:
			return eventError(ev)
		}
	}
}

// eventError maps an error frame to the APIError the REST API would return.
func eventError(ev ws.Event) *APIError {
	status := http.StatusServiceUnavailable
	switch ev.Code {
	case ws.CodeInvalidInput:
		status = http.StatusBadRequest
	case ws.CodeUnauthorized:
		status = http.StatusForbidden
	case ws.CodeNotFound:
		status = http.StatusNotFound
	case ws.CodeConflict:
		status = http.StatusConflict
	}
	return &APIError{Status: status, Message: ev.Error}
}

// terminal reports whether retrying the subscription cannot succeed.
func terminal(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound)
}

// Subscribe dials once synchronously so auth and participant failures
// surface to the caller. Later connection losses are retried until ctx is
// done or the server rejects the subscription for good, which closes the
// channel.
func (s *Stream) Subscribe(ctx context.Context, conversationID, sinceID int64) (<-chan *domain.Message, error) {
	conn, err := s.dial(ctx, conversationID, sinceID)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.Message)
	go func() {
		defer close(out)
		last := sinceID
		for {
			last, err = s.pump(ctx, conn, conversationID, out, last)
			if ctx.Err() != nil {
				return
			}
			if err != nil && terminal(err) {
				s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("subscription revoked")
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.backoff):
				}
				conn, err = s.dial(ctx, conversationID, last)
				if err == nil {
					break
				}
				if terminal(err) {
					s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("resubscribe rejected")
					return
				}
				s.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("redial failed")
			}
		}
	}()
	return out, nil
}

// pump reads events until the connection fails, the server rejects the
// subscription or ctx is done. It returns the last delivered id and the
// rejection, if any.
func (s *Stream) pump(ctx context.Context, conn *websocket.Conn, conversationID int64, out chan<- *domain.Message, last int64) (int64, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("ws read failed")
			}
			return last, nil
		}
		switch ev.Type {
		case ws.EventMessage:
			m := ev.Message
			if m == nil || m.ConversationID != conversationID || m.ID <= last {
				continue
			}
			select {
			case out <- m:
				last = m.ID
			case <-ctx.Done():
				return last, nil
			}
		case ws.EventError:
			if ev.ConversationID != conversationID {
				continue
			}
			err := eventError(ev)
			if terminal(err) {
				return last, err
			}
			s.log.Warn().Str("code", ev.Code).Str("error", ev.Error).Msg("server reported an error")
		}
	}
}
