package client_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenismatch/internal/app"
	"tenismatch/internal/client"
	"tenismatch/internal/config"
	"tenismatch/internal/delivery"
	"tenismatch/internal/domain"
	"tenismatch/internal/timeline"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		AppName:            "tenismatch test",
		DBDriver:           config.DriverSQLite,
		SQLitePath:         filepath.Join(t.TempDir(), "test.db"),
		JWTSecret:          "test-secret",
		AccessTokenMinutes: 60,
		SessionCookieName:  "tenismatch_session",
		SessionMaxAge:      time.Hour,
		EncryptKey:         "test-key",
		MaxMessageLength:   500,
		DeliveryMode:       config.DeliveryPush,
		PollInterval:       50 * time.Millisecond,
		ResyncInterval:     time.Second,
		PresenceBackend:    config.PresenceMemory,
		TypingTTL:          5 * time.Second,
		OnlineTTL:          time.Minute,
	}
	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv
}

type pair struct {
	a, b     *client.Client
	aID, bID int64
	conv     *domain.Conversation
}

func setup(t *testing.T, srv *httptest.Server) pair {
	t.Helper()
	ctx := context.Background()
	p := pair{a: client.New(srv.URL, ""), b: client.New(srv.URL, "")}

	ua, err := p.a.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	ub, err := p.b.Register(ctx, "bob", "password123")
	require.NoError(t, err)
	p.aID, p.bID = ua.ID, ub.ID

	conv, created, err := p.a.OpenConversation(ctx, p.bID, nil)
	require.NoError(t, err)
	assert.True(t, created)
	p.conv = conv
	return p
}

func waitFor(t *testing.T, s *timeline.Session, cond func([]*domain.Message) bool) []*domain.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		msgs := s.Timeline().Messages()
		if cond(msgs) {
			return msgs
		}
		select {
		case <-s.Updates():
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timeline never reached the expected state, have %d messages", len(msgs))
		}
	}
}

func TestClientErrors(t *testing.T) {
	srv := newServer(t)
	p := setup(t, srv)
	ctx := context.Background()

	again, created, err := p.b.OpenConversation(ctx, p.aID, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.conv.ID, again.ID)

	_, err = p.a.SendMessage(ctx, p.conv.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = p.a.ListMessages(ctx, 9999, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	outsider := client.New(srv.URL, "")
	_, err = outsider.Register(ctx, "carol", "password123")
	require.NoError(t, err)
	_, err = outsider.SendMessage(ctx, p.conv.ID, "hello?")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = client.New(srv.URL, "").Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStreamSubscribeRejected(t *testing.T) {
	srv := newServer(t)
	p := setup(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outsider := client.New(srv.URL, "")
	_, err := outsider.Register(ctx, "carol", "password123")
	require.NoError(t, err)

	t.Run("non participant", func(t *testing.T) {
		feed, err := client.NewStream(outsider, zerolog.Nop()).Subscribe(ctx, p.conv.ID, 0)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Nil(t, feed)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		feed, err := client.NewStream(p.a, zerolog.Nop()).Subscribe(ctx, 9999, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, feed)
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := client.NewStream(client.New(srv.URL, "garbage"), zerolog.Nop()).Subscribe(ctx, p.conv.ID, 0)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("participant", func(t *testing.T) {
		subCtx, stop := context.WithCancel(ctx)
		defer stop()
		feed, err := client.NewStream(p.b, zerolog.Nop()).Subscribe(subCtx, p.conv.ID, 0)
		require.NoError(t, err)

		sent, err := p.a.SendMessage(ctx, p.conv.ID, "set point")
		require.NoError(t, err)
		select {
		case m := <-feed:
			require.NotNil(t, m)
			assert.Equal(t, sent.ID, m.ID)
		case <-ctx.Done():
			t.Fatal("no message on the feed")
		}
	})
}

func TestTimelineOverStream(t *testing.T) {
	srv := newServer(t)
	p := setup(t, srv)
	ctx := context.Background()

	_, err := p.a.SendMessage(ctx, p.conv.ID, "first")
	require.NoError(t, err)

	bSession, err := timeline.Open(ctx, p.b, client.NewStream(p.b, zerolog.Nop()), p.conv.ID, p.bID)
	require.NoError(t, err)
	defer bSession.Close()
	require.Len(t, bSession.Timeline().Messages(), 1)

	aSession, err := timeline.Open(ctx, p.a, client.NewStream(p.a, zerolog.Nop()), p.conv.ID, p.aID)
	require.NoError(t, err)
	defer aSession.Close()

	sent, err := aSession.Send(ctx, "second")
	require.NoError(t, err)
	assert.Zero(t, aSession.Timeline().PendingCount())

	msgs := waitFor(t, bSession, func(m []*domain.Message) bool { return len(m) == 2 })
	assert.Equal(t, sent.ID, msgs[1].ID)
	assert.Equal(t, "second", msgs[1].Body)

	// the sender also receives its own message through the stream; it must not duplicate
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, aSession.Timeline().Messages(), 2)

	_, err = bSession.Send(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, bSession.Timeline().PendingCount())
}

func TestTimelineOverPoller(t *testing.T) {
	srv := newServer(t)
	p := setup(t, srv)
	ctx := context.Background()

	poller := delivery.NewPoller(p.b, 50*time.Millisecond, zerolog.Nop())
	s, err := timeline.Open(ctx, p.b, poller, p.conv.ID, p.bID)
	require.NoError(t, err)
	defer s.Close()

	for _, body := range []string{"one", "two", "three"} {
		_, err := p.a.SendMessage(ctx, p.conv.ID, body)
		require.NoError(t, err)
	}
	msgs := waitFor(t, s, func(m []*domain.Message) bool { return len(m) == 3 })
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "three", msgs[2].Body)
}

func TestMarkReadAndList(t *testing.T) {
	srv := newServer(t)
	p := setup(t, srv)
	ctx := context.Background()

	_, err := p.a.SendMessage(ctx, p.conv.ID, "ping")
	require.NoError(t, err)

	list, err := p.b.ListConversations(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)

	at, err := p.b.MarkRead(ctx, p.conv.ID, time.Time{})
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	list, err = p.b.ListConversations(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].UnreadCount)

	require.NoError(t, p.a.SetTyping(ctx, p.conv.ID))
}
