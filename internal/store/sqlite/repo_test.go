package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenismatch/internal/domain"
	"tenismatch/internal/store/sqlite"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.OpenMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUsers(t *testing.T, db *sql.DB, n int) []int64 {
	t.Helper()
	repo := sqlite.NewUserRepo(db)
	ids := make([]int64, n)
	for i := range ids {
		u := &domain.User{Username: fmt.Sprintf("player%d", i+1), HashedPassword: "x", IsActive: true}
		require.NoError(t, repo.Create(context.Background(), u))
		ids[i] = u.ID
	}
	return ids
}

func createConversation(t *testing.T, db *sql.DB, a, b int64) *domain.Conversation {
	t.Helper()
	pair, err := domain.NewPair(a, b)
	require.NoError(t, err)
	c := &domain.Conversation{CreatorID: a, UserLowID: pair.Low, UserHighID: pair.High}
	created, err := sqlite.NewConversationRepo(db).CreateDirect(context.Background(), c)
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func TestUserRepo(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	repo := sqlite.NewUserRepo(db)

	u := &domain.User{Username: "nadal", DisplayName: "Rafa", HashedPassword: "h", IsActive: true}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := repo.GetByUsername(ctx, "nadal")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Rafa", got.DisplayName)
	assert.True(t, got.IsActive)

	missing, err := repo.GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, repo.Create(ctx, &domain.User{Username: "nadal", HashedPassword: "h"}))
}

func TestConversationRepoCreateAndFind(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 3)
	repo := sqlite.NewConversationRepo(db)

	pair, _ := domain.NewPair(ids[1], ids[0])
	found, err := repo.FindDirect(ctx, pair)
	require.NoError(t, err)
	assert.Nil(t, found)

	ad := int64(42)
	c := &domain.Conversation{CreatorID: ids[0], AdID: &ad, UserLowID: pair.Low, UserHighID: pair.High}
	created, err := repo.CreateDirect(ctx, c)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, c.ID)

	found, err = repo.FindDirect(ctx, pair)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)
	require.NotNil(t, found.AdID)
	assert.Equal(t, int64(42), *found.AdID)
	assert.Nil(t, found.LastMessageAt)

	t.Run("LostInsertReturnsExisting", func(t *testing.T) {
		dup := &domain.Conversation{CreatorID: ids[1], UserLowID: pair.Low, UserHighID: pair.High}
		created, err := repo.CreateDirect(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, c.ID, dup.ID)
		assert.Equal(t, ids[0], dup.CreatorID)
	})

	t.Run("ParticipantsBoth", func(t *testing.T) {
		got, err := sqlite.NewParticipantRepo(db).ListIDs(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{pair.Low, pair.High}, got)
	})

	t.Run("OtherPairUntouched", func(t *testing.T) {
		other, _ := domain.NewPair(ids[0], ids[2])
		found, err := repo.FindDirect(ctx, other)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestConversationRepoConcurrentCreate(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 2)
	repo := sqlite.NewConversationRepo(db)

	const n = 20
	results := make([]int64, 2*n)
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
			if c, err := repo.FindDirect(ctx, pair); err == nil && c != nil {
				results[i] = c.ID
				return
			}
			c := &domain.Conversation{CreatorID: a, UserLowID: pair.Low, UserHighID: pair.High}
			if _, err := repo.CreateDirect(ctx, c); err == nil {
				results[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	assert.NotZero(t, results[0])

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMessageRepoAppendAndList(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 2)
	c := createConversation(t, db, ids[0], ids[1])
	repo := sqlite.NewMessageRepo(db)

	first := &domain.Message{ConversationID: c.ID, SenderID: ids[0], Body: "Salut, dispo samedi ?"}
	require.NoError(t, repo.Append(ctx, first))
	second := &domain.Message{ConversationID: c.ID, SenderID: ids[1], Body: "Oui, 14h ça marche"}
	require.NoError(t, repo.Append(ctx, second))

	assert.Greater(t, second.ID, first.ID)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))

	all, err := repo.ListSince(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, "Oui, 14h ça marche", all[1].Body)
	assert.True(t, all[0].CreatedAt.Equal(first.CreatedAt))

	t.Run("SinceIsIdempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			got, err := repo.ListSince(ctx, c.ID, second.ID)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
		got, err := repo.ListSince(ctx, c.ID, first.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, second.ID, got[0].ID)
	})

	t.Run("BumpsLastActivity", func(t *testing.T) {
		conv, err := sqlite.NewConversationRepo(db).GetByID(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, conv.LastMessageAt)
		assert.True(t, conv.LastMessageAt.Equal(second.CreatedAt))
	})

	t.Run("MissingConversation", func(t *testing.T) {
		err := repo.Append(ctx, &domain.Message{ConversationID: 999, SenderID: ids[0], Body: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMessageRepoOrderUnderConcurrency(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 2)
	c := createConversation(t, db, ids[0], ids[1])
	repo := sqlite.NewMessageRepo(db)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Append(ctx, &domain.Message{ConversationID: c.ID, SenderID: ids[i%2], Body: fmt.Sprintf("m%d", i)})
		}(i)
	}
	wg.Wait()

	first, err := repo.ListSince(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, first, 30)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Before(first[i]), "out of order at %d", i)
		assert.Less(t, first[i-1].ID, first[i].ID)
	}

	again, err := repo.ListSince(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestParticipantRepoMarkRead(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 2)
	c := createConversation(t, db, ids[0], ids[1])
	repo := sqlite.NewParticipantRepo(db)

	p, err := repo.Get(ctx, c.ID, ids[0])
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.LastReadAt)

	later := time.Now().UTC().Truncate(time.Microsecond)
	earlier := later.Add(-time.Hour)

	require.NoError(t, repo.MarkRead(ctx, c.ID, ids[0], later))
	require.NoError(t, repo.MarkRead(ctx, c.ID, ids[0], earlier))

	p, err = repo.Get(ctx, c.ID, ids[0])
	require.NoError(t, err)
	require.NotNil(t, p.LastReadAt)
	assert.True(t, p.LastReadAt.Equal(later), "last_read_at moved backwards")

	missing, err := repo.Get(ctx, c.ID, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationRepoListForUser(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 3)
	convs := sqlite.NewConversationRepo(db)
	msgs := sqlite.NewMessageRepo(db)
	parts := sqlite.NewParticipantRepo(db)

	quiet := createConversation(t, db, ids[0], ids[2])
	busy := createConversation(t, db, ids[0], ids[1])

	require.NoError(t, msgs.Append(ctx, &domain.Message{ConversationID: busy.ID, SenderID: ids[1], Body: "a"}))
	require.NoError(t, msgs.Append(ctx, &domain.Message{ConversationID: busy.ID, SenderID: ids[1], Body: "b"}))
	last := &domain.Message{ConversationID: busy.ID, SenderID: ids[0], Body: "c"}
	require.NoError(t, msgs.Append(ctx, last))

	list, err := convs.ListForUser(ctx, ids[0], false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, busy.ID, list[0].ID)
	assert.Equal(t, ids[1], list[0].OtherUserID)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.Equal(t, quiet.ID, list[1].ID)
	assert.Equal(t, 0, list[1].UnreadCount)

	t.Run("last message preview", func(t *testing.T) {
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, last.ID, list[0].LastMessage.ID)
		assert.Equal(t, busy.ID, list[0].LastMessage.ConversationID)
		assert.Equal(t, ids[0], list[0].LastMessage.SenderID)
		assert.Equal(t, "c", list[0].LastMessage.Body)
		assert.WithinDuration(t, last.CreatedAt, list[0].LastMessage.CreatedAt, time.Millisecond)
		assert.Nil(t, list[1].LastMessage, "conversation without messages has no preview")
	})

	require.NoError(t, parts.MarkRead(ctx, busy.ID, ids[0], time.Now()))
	list, err = convs.ListForUser(ctx, ids[0], false)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].UnreadCount)

	other, err := convs.ListForUser(ctx, ids[1], false)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 1, other[0].UnreadCount)
}

func TestConversationRepoArchiveInactive(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	ids := createUsers(t, db, 3)
	convs := sqlite.NewConversationRepo(db)
	msgs := sqlite.NewMessageRepo(db)

	stale := createConversation(t, db, ids[0], ids[1])
	empty := createConversation(t, db, ids[0], ids[2])
	require.NoError(t, msgs.Append(ctx, &domain.Message{ConversationID: stale.ID, SenderID: ids[0], Body: "old"}))

	n, err := convs.ArchiveInactive(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recent conversations stay active")

	n, err = convs.ArchiveInactive(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := convs.ListForUser(ctx, ids[0], false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, empty.ID, active[0].ID)

	all, err := convs.ListForUser(ctx, ids[0], true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	t.Run("NewMessageUnarchives", func(t *testing.T) {
		require.NoError(t, msgs.Append(ctx, &domain.Message{ConversationID: stale.ID, SenderID: ids[1], Body: "back"}))
		active, err := convs.ListForUser(ctx, ids[0], false)
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})
}
