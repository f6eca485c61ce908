package automation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenismatch/internal/automation"
	"tenismatch/internal/domain"
	"tenismatch/internal/queue"
	"tenismatch/internal/security"
	"tenismatch/internal/service"
	"tenismatch/internal/store/sqlite"
)

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) ArchiveStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type fakeServer struct {
	handlers map[string]queue.Handler
}

func (s *fakeServer) Register(taskType string, h queue.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]queue.Handler{}
	}
	s.handlers[taskType] = h
}

func (s *fakeServer) Run(ctx context.Context) error { return nil }

type fakeScheduler struct {
	specs []string
	tasks []queue.Task
}

func (s *fakeScheduler) Schedule(cronspec string, t queue.Task, _ ...queue.EnqueueOption) (string, error) {
	s.specs = append(s.specs, cronspec)
	s.tasks = append(s.tasks, t)
	return "entry-1", nil
}

func (s *fakeScheduler) Run(ctx context.Context) error { return nil }

type fakeClient struct {
	err   error
	tasks []queue.Task
	opts  []queue.EnqueueOption
}

func (c *fakeClient) Enqueue(_ context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.tasks = append(c.tasks, t)
	c.opts = append(c.opts, opts...)
	return "task-1", nil
}

func (c *fakeClient) Close() error { return nil }

func TestEnqueueArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a unique sweep", func(t *testing.T) {
		c := &fakeClient{}
		require.NoError(t, automation.EnqueueArchive(ctx, c, 0, zerolog.Nop()))
		require.Len(t, c.tasks, 1)
		assert.Equal(t, automation.TypeArchiveStale, c.tasks[0].Type)
		require.Len(t, c.opts, 1)
		assert.Equal(t, "default", c.opts[0].Queue)
		assert.Equal(t, time.Hour, c.opts[0].UniqueTTL)

		m := new(MockArchiver)
		m.On("ArchiveStale", mock.Anything, 720*time.Hour).Return(int64(0), nil)
		h := automation.ArchiveHandler(m, 720*time.Hour, zerolog.Nop())
		require.NoError(t, h(ctx, c.tasks[0]))
		m.AssertExpectations(t)
	})

	t.Run("already queued", func(t *testing.T) {
		c := &fakeClient{err: fmt.Errorf("%w: %s", queue.ErrDuplicate, automation.TypeArchiveStale)}
		assert.NoError(t, automation.EnqueueArchive(ctx, c, 0, zerolog.Nop()))
	})

	t.Run("broker down", func(t *testing.T) {
		c := &fakeClient{err: errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")}
		err := automation.EnqueueArchive(ctx, c, time.Hour, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), automation.TypeArchiveStale)
	})
}

func TestArchiveHandlerAge(t *testing.T) {
	ctx := context.Background()

	t.Run("default age", func(t *testing.T) {
		m := new(MockArchiver)
		m.On("ArchiveStale", ctx, 720*time.Hour).Return(int64(3), nil)
		h := automation.ArchiveHandler(m, 720*time.Hour, zerolog.Nop())

		task, err := automation.NewArchiveTask(0)
		require.NoError(t, err)
		require.NoError(t, h(ctx, task))
		m.AssertExpectations(t)
	})

	t.Run("payload override", func(t *testing.T) {
		m := new(MockArchiver)
		m.On("ArchiveStale", ctx, time.Hour).Return(int64(0), nil)
		h := automation.ArchiveHandler(m, 720*time.Hour, zerolog.Nop())

		task, err := automation.NewArchiveTask(time.Hour)
		require.NoError(t, err)
		require.NoError(t, h(ctx, task))
		m.AssertExpectations(t)
	})

	t.Run("store failure is retried", func(t *testing.T) {
		m := new(MockArchiver)
		m.On("ArchiveStale", ctx, time.Hour).Return(int64(0), domain.ErrStoreUnavailable)
		h := automation.ArchiveHandler(m, time.Hour, zerolog.Nop())

		err := h(ctx, queue.Task{Type: automation.TypeArchiveStale})
		assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	})

	t.Run("bad payload", func(t *testing.T) {
		h := automation.ArchiveHandler(new(MockArchiver), time.Hour, zerolog.Nop())
		assert.Error(t, h(ctx, queue.Task{Type: automation.TypeArchiveStale, Payload: []byte("{")}))
	})
}

func TestRegister(t *testing.T) {
	srv := &fakeServer{}
	sched := &fakeScheduler{}
	require.NoError(t, automation.Register(srv, sched, new(MockArchiver), time.Hour, "@daily", zerolog.Nop()))

	assert.Contains(t, srv.handlers, automation.TypeArchiveStale)
	assert.Equal(t, []string{"@daily"}, sched.specs)
	assert.Equal(t, automation.TypeArchiveStale, sched.tasks[0].Type)

	require.NoError(t, automation.Register(&fakeServer{}, nil, new(MockArchiver), time.Hour, "", zerolog.Nop()))
}

func TestArchiveJobAgainstStore(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenMemory(ctx, t.Name())
	require.NoError(t, err)
	defer db.Close()

	users := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	var ids []int64
	for _, name := range []string{"djokovic", "murray"} {
		u := &domain.User{Username: name, HashedPassword: "x", IsActive: true}
		require.NoError(t, users.Create(ctx, u))
		ids = append(ids, u.ID)
	}

	enc, err := security.NewEncryptor([]byte("test-key"), nil)
	require.NoError(t, err)
	convs := service.NewConversationService(convRepo, sqlite.NewParticipantRepo(db), users, nil, zerolog.Nop())
	msgs := service.NewMessageService(convRepo, sqlite.NewMessageRepo(db), enc, nil, zerolog.Nop())

	conv, _, err := convs.GetOrCreate(ctx, ids[0], ids[1], nil)
	require.NoError(t, err)
	_, err = msgs.Append(ctx, conv.ID, ids[0], "good match")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	h := automation.ArchiveHandler(service.NewArchiveService(convRepo, zerolog.Nop()), 720*time.Hour, zerolog.Nop())
	task, err := automation.NewArchiveTask(time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, h(ctx, task))

	visible, err := convs.ListForUser(ctx, ids[1], false)
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := convs.ListForUser(ctx, ids[1], true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsArchived)
}
