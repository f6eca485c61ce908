//go:build container

package presence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tenismatch/internal/presence"
)

func setupRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	ctr, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisTracker(t *testing.T) {
	ctx := context.Background()
	url := setupRedis(t, ctx)

	tr, err := presence.NewRedisFromURL(ctx, url, time.Second, time.Second)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Touch(ctx, 1))
	online, err := tr.Online(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: false}, online)

	require.NoError(t, tr.SetTyping(ctx, 5, 2))
	require.NoError(t, tr.SetTyping(ctx, 5, 1))
	typing, err := tr.Typing(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, typing)

	require.Eventually(t, func() bool {
		online, err := tr.Online(ctx, []int64{1})
		return err == nil && !online[1]
	}, 5*time.Second, 100*time.Millisecond)

	typing, err = tr.Typing(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, typing)

	require.NoError(t, tr.Touch(ctx, 3))
	require.NoError(t, tr.Leave(ctx, 3))
	online, err = tr.Online(ctx, []int64{3})
	require.NoError(t, err)
	assert.False(t, online[3])
}
