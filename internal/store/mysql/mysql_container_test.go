//go:build container

package mysql_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"tenismatch/internal/domain"
	"tenismatch/internal/store/mysql"
)

func setupMySQL(t *testing.T, ctx context.Context) *gorm.DB {
	t.Helper()

	req := tc.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "tennis_platform",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(120 * time.Second),
	}
	ctr, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306")
	require.NoError(t, err)
	dsn := fmt.Sprintf("root:root@tcp(%s:%s)/tennis_platform?parseTime=true&loc=UTC", host, port.Port())

	db, err := mysql.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, mysql.Migrate(ctx, db))
	return db
}

func TestMySQLStore(t *testing.T) {
	ctx := context.Background()
	db := setupMySQL(t, ctx)

	users := mysql.NewUserRepo(db)
	convs := mysql.NewConversationRepo(db)
	msgs := mysql.NewMessageRepo(db)
	parts := mysql.NewParticipantRepo(db)

	var ids []int64
	for _, name := range []string{"alice", "bob", "carol"} {
		u := &domain.User{Username: name, HashedPassword: "x", IsActive: true}
		require.NoError(t, users.Create(ctx, u))
		ids = append(ids, u.ID)
	}

	pair, err := domain.NewPair(ids[1], ids[0])
	require.NoError(t, err)

	var convID int64
	t.Run("ConcurrentCreate", func(t *testing.T) {
		const n = 8
		got := make([]int64, n)
		created := make([]bool, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c := &domain.Conversation{CreatorID: ids[0], UserLowID: pair.Low, UserHighID: pair.High}
				ok, err := convs.CreateDirect(ctx, c)
				assert.NoError(t, err)
				got[i], created[i] = c.ID, ok
			}(i)
		}
		wg.Wait()

		winners := 0
		for i := range got {
			assert.Equal(t, got[0], got[i])
			if created[i] {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
		convID = got[0]

		found, err := convs.FindDirect(ctx, pair)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, convID, found.ID)
	})

	t.Run("AppendAndList", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, msgs.Append(ctx, &domain.Message{ConversationID: convID, SenderID: ids[i%2], Body: fmt.Sprintf("m%d", i)}))
		}
		all, err := msgs.ListSince(ctx, convID, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i := 1; i < len(all); i++ {
			assert.True(t, all[i-1].Before(all[i]))
		}
		tail, err := msgs.ListSince(ctx, convID, all[2].ID)
		require.NoError(t, err)
		assert.Len(t, tail, 2)
	})

	t.Run("MarkReadAndList", func(t *testing.T) {
		list, err := convs.ListForUser(ctx, ids[1], false)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 3, list[0].UnreadCount)
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, "m4", list[0].LastMessage.Body)
		assert.Equal(t, ids[0], list[0].LastMessage.SenderID)

		require.NoError(t, parts.MarkRead(ctx, convID, ids[1], time.Now().UTC().Add(time.Second)))
		list, err = convs.ListForUser(ctx, ids[1], false)
		require.NoError(t, err)
		assert.Equal(t, 0, list[0].UnreadCount)

		p, err := parts.Get(ctx, convID, ids[2])
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
