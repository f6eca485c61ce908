// Package automation holds the periodic maintenance jobs of the messaging
// store.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tenismatch/internal/queue"
)

const TypeArchiveStale = "conversations:archive_stale"

// ArchivePayload overrides the configured age when OlderThanMs is set.
type ArchivePayload struct {
	OlderThanMs int64 `json:"older_than_ms,omitempty"`
}

// Archiver is the store side of the job.
type Archiver interface {
	ArchiveStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

func NewArchiveTask(olderThan time.Duration) (queue.Task, error) {
	payload, err := json.Marshal(ArchivePayload{OlderThanMs: olderThan.Milliseconds()})
	if err != nil {
		return queue.Task{}, fmt.Errorf("encode archive payload: %w", err)
	}
	return queue.Task{Type: TypeArchiveStale, Payload: payload}, nil
}

// ArchiveHandler archives conversations idle for longer than defaultAge, or
// the age carried by the task.
func ArchiveHandler(archiver Archiver, defaultAge time.Duration, log zerolog.Logger) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		age := defaultAge
		if len(task.Payload) > 0 {
			var p ArchivePayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return fmt.Errorf("decode archive payload: %w", err)
			}
			if p.OlderThanMs > 0 {
				age = time.Duration(p.OlderThanMs) * time.Millisecond
			}
		}

		start := time.Now()
		n, err := archiver.ArchiveStale(ctx, age)
		if err != nil {
			return err
		}
		log.Info().
			Str("task", task.Type).
			Dur("older_than", age).
			Int64("archived", n).
			Dur("took", time.Since(start)).
			Msg("archive job done")
		return nil
	}
}

// archiveOption queues sweeps on the default queue and drops a second sweep
// enqueued within the hour.
var archiveOption = queue.EnqueueOption{Queue: "default", UniqueTTL: time.Hour}

// EnqueueArchive queues a one-off archive sweep. olderThan 0 uses the
// worker's configured age. A sweep already waiting in the queue is not an
// error.
func EnqueueArchive(ctx context.Context, client queue.Client, olderThan time.Duration, log zerolog.Logger) error {
	task, err := NewArchiveTask(olderThan)
	if err != nil {
		return err
	}
	id, err := client.Enqueue(ctx, task, archiveOption)
	switch {
	case errors.Is(err, queue.ErrDuplicate):
		log.Info().Str("task", TypeArchiveStale).Msg("archive sweep already queued")
		return nil
	case err != nil:
		return fmt.Errorf("enqueue %s: %w", TypeArchiveStale, err)
	}
	log.Info().Str("task", TypeArchiveStale).Str("task_id", id).Msg("archive sweep queued")
	return nil
}

// Register wires the maintenance jobs into srv and, when sched is not nil,
// schedules the archive sweep on cronspec.
func Register(srv queue.Server, sched queue.Scheduler, archiver Archiver, archiveAfter time.Duration, cronspec string, log zerolog.Logger) error {
	srv.Register(TypeArchiveStale, ArchiveHandler(archiver, archiveAfter, log))
	if sched == nil {
		return nil
	}
	task, err := NewArchiveTask(0)
	if err != nil {
		return err
	}
	id, err := sched.Schedule(cronspec, task, archiveOption)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", TypeArchiveStale, err)
	}
	log.Info().Str("entry_id", id).Str("cron", cronspec).Msg("archive sweep scheduled")
	return nil
}
