package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tenismatch/internal/delivery"
	"tenismatch/internal/domain"
	"tenismatch/internal/presence"
	"tenismatch/internal/service"
)

// DefaultPongWait is how long a connection may stay silent, pongs included.
const DefaultPongWait = 60 * time.Second

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type Options struct {
	AllowedOrigins []string
	CookieName     string
	// PongWait defaults to DefaultPongWait. Pings go out every 9/10 of it.
	PongWait time.Duration
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin admits requests without an Origin header (non-browser
// clients) and browser requests from the allowed origins.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		_, ok := allowed[strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))]
		return ok
	}
}

func extractToken(r *http.Request, cookieName string) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token, nil
		}
	}

	if protocolHeader := r.Header.Get("Sec-WebSocket-Protocol"); protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// Handler serves /ws. Each connection can follow several conversations; the
// messages of a followed conversation come from the deployment's Subscriber.
type Handler struct {
	hub      *Hub
	auth     Authenticator
	convs    *service.ConversationService
	msgs     *service.MessageService
	sub      delivery.Subscriber
	presence presence.Tracker
	log      zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(
	hub *Hub,
	auth Authenticator,
	convs *service.ConversationService,
	msgs *service.MessageService,
	sub delivery.Subscriber,
	tracker presence.Tracker,
	log zerolog.Logger,
	opts Options,
) *Handler {
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	return &Handler{
		hub:      hub,
		auth:     auth,
		convs:    convs,
		msgs:     msgs,
		sub:      sub,
		presence: tracker,
		log:      log.With().Str("component", "ws").Logger(),
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:  checkOrigin,
			Subprotocols: []string{"bearer"},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.upgrader.CheckOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	token, err := extractToken(r, h.opts.CookieName)
	if err != nil {
		var authErr wsAuthError
		if errors.As(err, &authErr) {
			http.Error(w, authErr.msg, authErr.status)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid or expired session", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := NewClient(user.ID, conn)
	h.hub.Register(c)
	h.touch(ctx, user.ID)
	log := h.log.With().Int64("user_id", user.ID).Logger()
	log.Debug().Msg("connected")

	s := &session{h: h, client: c, log: log, subs: make(map[int64]context.CancelFunc)}
	defer func() {
		s.closeAll()
		if h.hub.Unregister(c) {
			if err := h.presence.Leave(context.Background(), user.ID); err != nil {
				log.Debug().Err(err).Msg("presence leave failed")
			}
		}
		log.Debug().Msg("disconnected")
	}()

	pongWait := h.opts.PongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		h.touch(ctx, user.ID)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go h.keepalive(ctx, c, pongWait*9/10)

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(ctx, ev)
	}
}

// keepalive pings the peer every period until ctx ends. A failed ping closes
// the connection, which ends the read loop.
func (h *Handler) keepalive(ctx context.Context, c *Client, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (h *Handler) touch(ctx context.Context, userID int64) {
	if err := h.presence.Touch(ctx, userID); err != nil {
		h.log.Debug().Err(err).Int64("user_id", userID).Msg("presence touch failed")
	}
}

type session struct {
	h      *Handler
	client *Client
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[int64]context.CancelFunc
	wg   sync.WaitGroup
}

func (s *session) dispatch(ctx context.Context, ev Event) {
	userID := s.client.UserID
	switch ev.Type {

	// ── follow a conversation ────────────────────────────────────────
	case EventSubscribe:
		conv, err := s.h.convs.Get(ctx, ev.ConversationID, userID)
		if err != nil {
			s.fail(ev, err)
			return
		}
		if err := s.subscribe(ctx, ev.ConversationID, ev.SinceID); err != nil {
			s.fail(ev, err)
			return
		}
		s.sendPresence(ctx, conv)

	case EventUnsubscribe:
		s.unsubscribe(ev.ConversationID)

	// ── send message ─────────────────────────────────────────────────
	case EventSend:
		m, err := s.h.msgs.Append(ctx, ev.ConversationID, userID, ev.Body)
		if err != nil {
			s.fail(ev, err)
			return
		}
		_ = s.client.Send(Event{Type: EventAck, ConversationID: m.ConversationID, ClientToken: ev.ClientToken, Message: m})

	// ── typing indicator ─────────────────────────────────────────────
	case EventTyping:
		conv, err := s.h.convs.Get(ctx, ev.ConversationID, userID)
		if err != nil {
			s.fail(ev, err)
			return
		}
		if err := s.h.presence.SetTyping(ctx, conv.ID, userID); err != nil {
			s.log.Debug().Err(err).Msg("set typing failed")
		}
		s.h.hub.SendToUsers([]int64{conv.OtherParticipant(userID)}, Event{
			Type:           EventTyping,
			ConversationID: conv.ID,
			UserID:         userID,
		})

	// ── read receipts ────────────────────────────────────────────────
	case EventMarkRead:
		var upto time.Time
		if ev.Upto != nil {
			upto = *ev.Upto
		}
		at, err := s.h.convs.MarkRead(ctx, ev.ConversationID, userID, upto)
		if err != nil {
			s.fail(ev, err)
			return
		}
		ids, err := s.h.convs.ParticipantIDs(ctx, ev.ConversationID)
		if err != nil {
			s.fail(ev, err)
			return
		}
		s.h.hub.SendToUsers(ids, Event{
			Type:           EventMessagesRead,
			ConversationID: ev.ConversationID,
			UserID:         userID,
			Upto:           &at,
		})

	case EventPing:
		s.h.touch(ctx, userID)
		_ = s.client.Send(Event{Type: EventPong})

	default:
		_ = s.client.Send(Event{Type: EventError, Error: fmt.Sprintf("unknown event type %q", ev.Type), Code: CodeInvalidInput})
	}
}

func (s *session) subscribe(ctx context.Context, conversationID, sinceID int64) error {
	s.unsubscribe(conversationID)

	subCtx, cancel := context.WithCancel(ctx)
	feed, err := s.h.sub.Subscribe(subCtx, conversationID, sinceID)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.subs[conversationID] = cancel
	s.mu.Unlock()

	// The ack precedes every message of the feed.
	if err := s.client.Send(Event{Type: EventSubscribed, ConversationID: conversationID}); err != nil {
		s.unsubscribe(conversationID)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for m := range feed {
			if err := s.client.Send(Event{Type: EventMessage, ConversationID: m.ConversationID, Message: m}); err != nil {
				cancel()
			}
		}
	}()
	return nil
}

func (s *session) unsubscribe(conversationID int64) {
	s.mu.Lock()
	cancel, ok := s.subs[conversationID]
	delete(s.subs, conversationID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *session) closeAll() {
	s.mu.Lock()
	for id, cancel := range s.subs {
		cancel()
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *session) sendPresence(ctx context.Context, conv *domain.Conversation) {
	other := conv.OtherParticipant(s.client.UserID)
	online, err := s.h.presence.Online(ctx, []int64{other})
	if err != nil {
		return
	}
	typing, err := s.h.presence.Typing(ctx, conv.ID)
	if err != nil {
		return
	}
	isOnline := online[other]
	_ = s.client.Send(Event{
		Type:           EventPresence,
		ConversationID: conv.ID,
		UserID:         other,
		Online:         &isOnline,
		Typing:         typing,
	})
}

func (s *session) fail(ev Event, err error) {
	_ = s.client.Send(s.errorEvent(ev, err))
}

// errorEvent builds the error frame for a failed event. Store failures are
// logged and reported without their cause.
func (s *session) errorEvent(ev Event, err error) Event {
	code := ErrorCode(err)
	msg := err.Error()
	if code == CodeStoreUnavailable {
		s.log.Error().Err(err).Str("event", ev.Type).Msg("ws event failed")
		msg = domain.ErrStoreUnavailable.Error()
	}
	return Event{
		Type:           EventError,
		ConversationID: ev.ConversationID,
		ClientToken:    ev.ClientToken,
		Error:          msg,
		Code:           code,
	}
}

// ErrorCode names the error class for clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return CodeConflict
	default:
		return CodeStoreUnavailable
	}
}
