// Package queue runs background work outside the request path. The
// interfaces keep task handlers independent of the broker.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by Client.Enqueue when a unique task is already
// queued.
var ErrDuplicate = errors.New("queue: duplicate task")

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error schedules a retry, so handlers
// must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Zero values mean "unspecified".
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	UniqueTTL time.Duration
	Timeout   time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is cancelled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}

// Scheduler enqueues tasks on a cron schedule. Run blocks until ctx is cancelled.
type Scheduler interface {
	Schedule(cronspec string, t Task, opts ...EnqueueOption) (id string, err error)
	Run(ctx context.Context) error
}
