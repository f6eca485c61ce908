//go:build container

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tenismatch/internal/domain"
	"tenismatch/internal/store/postgres"
)

func setupPostgres(t *testing.T, ctx context.Context) (*sql.DB, string) {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "tenismatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	ctr, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/tenismatch?sslmode=disable", host, port.Port())

	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, postgres.Migrate(ctx, db))
	return db, dsn
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	db, dsn := setupPostgres(t, ctx)

	users := postgres.NewUserRepo(db)
	convs := postgres.NewConversationRepo(db)
	msgs := postgres.NewMessageRepo(db, true)
	parts := postgres.NewParticipantRepo(db)

	var ids []int64
	for _, name := range []string{"alice", "bob", "carol"} {
		u := &domain.User{Username: name, HashedPassword: "x", IsActive: true}
		require.NoError(t, users.Create(ctx, u))
		ids = append(ids, u.ID)
	}

	var convID int64
	t.Run("ConcurrentGetOrCreate", func(t *testing.T) {
		const n = 16
		got := make([]int64, 2*n)
		var wg sync.WaitGroup
		for i := 0; i < 2*n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := ids[0], ids[1]
				if i%2 == 1 {
					a, b = b, a
				}
				pair, _ := domain.NewPair(a, b)
				c := &domain.Conversation{CreatorID: a, UserLowID: pair.Low, UserHighID: pair.High}
				if _, err := convs.CreateDirect(ctx, c); err == nil {
					got[i] = c.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range got {
			assert.Equal(t, got[0], id)
		}
		convID = got[0]
		require.NotZero(t, convID)

		pids, err := parts.ListIDs(ctx, convID)
		require.NoError(t, err)
		assert.Len(t, pids, 2)
	})

	t.Run("NotifyOnAppend", func(t *testing.T) {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		notes := make(chan postgres.Notification, 4)
		l := postgres.NewListener(dsn, func(n postgres.Notification) { notes <- n }, zerolog.Nop())
		go l.Run(lctx)
		time.Sleep(500 * time.Millisecond)

		m := &domain.Message{ConversationID: convID, SenderID: ids[0], Body: "ciphertext"}
		require.NoError(t, msgs.Append(ctx, m))

		select {
		case n := <-notes:
			assert.Equal(t, convID, n.ConversationID)
			assert.Equal(t, m.ID, n.MessageID)
		case <-time.After(5 * time.Second):
			t.Fatal("no notification received")
		}
	})

	t.Run("OrderedConcurrentAppends", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = msgs.Append(ctx, &domain.Message{ConversationID: convID, SenderID: ids[i%2], Body: "x"})
			}(i)
		}
		wg.Wait()

		list, err := msgs.ListSince(ctx, convID, 0)
		require.NoError(t, err)
		require.Len(t, list, 21)
		for i := 1; i < len(list); i++ {
			assert.True(t, list[i-1].Before(list[i]))
			assert.Less(t, list[i-1].ID, list[i].ID)
		}
		tail, err := msgs.ListSince(ctx, convID, list[len(list)-1].ID)
		require.NoError(t, err)
		assert.Empty(t, tail)
	})

	t.Run("NonParticipantHasNoRow", func(t *testing.T) {
		p, err := parts.Get(ctx, convID, ids[2])
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("ListAndArchive", func(t *testing.T) {
		list, err := convs.ListForUser(ctx, ids[1], false)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, ids[0], list[0].OtherUserID)
		assert.Greater(t, list[0].UnreadCount, 0)
		history, err := msgs.ListSince(ctx, convID, 0)
		require.NoError(t, err)
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, history[len(history)-1].ID, list[0].LastMessage.ID)
		assert.Equal(t, history[len(history)-1].Body, list[0].LastMessage.Body)

		require.NoError(t, parts.MarkRead(ctx, convID, ids[1], time.Now().Add(time.Minute)))
		require.NoError(t, parts.MarkRead(ctx, convID, ids[1], time.Now().Add(-time.Hour)))
		list, err = convs.ListForUser(ctx, ids[1], false)
		require.NoError(t, err)
		assert.Equal(t, 0, list[0].UnreadCount)

		n, err := convs.ArchiveInactive(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		list, err = convs.ListForUser(ctx, ids[1], false)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
