package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ===================== Client =====================

// AsynqClient implements Client on github.com/hibiken/asynq with Redis as
// the backing store.
type AsynqClient struct {
	client *asynq.Client
}

var _ Client = (*AsynqClient)(nil)

func redisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return opt, nil
}

func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

func (a *AsynqClient) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(opts)...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, t.Type)
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// asynqOptions maps the first option; callers pass one consolidated option.
func asynqOptions(opts []EnqueueOption) []asynq.Option {
	if len(opts) == 0 {
		return nil
	}
	op := opts[0]
	var res []asynq.Option
	if op.Queue != "" {
		res = append(res, asynq.Queue(op.Queue))
	}
	if op.ProcessIn > 0 {
		res = append(res, asynq.ProcessIn(op.ProcessIn))
	}
	if op.MaxRetry > 0 {
		res = append(res, asynq.MaxRetry(op.MaxRetry))
	}
	if op.UniqueTTL > 0 {
		res = append(res, asynq.Unique(op.UniqueTTL))
	}
	if op.Timeout > 0 {
		res = append(res, asynq.Timeout(op.Timeout))
	}
	return res
}

// ===================== Server =====================

// AsynqServer implements Server on github.com/hibiken/asynq.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ Server = (*AsynqServer)(nil)

// NewAsynqServer consumes the queues given as "critical=6,default=3" weights
// (default "default=1").
func NewAsynqServer(redisURL string, concurrency int, queues string, log zerolog.Logger) (*AsynqServer, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	weights := parseQueueWeights(queues)
	if len(weights) == 0 {
		weights = map[string]int{"default": 1}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		Logger:      zerologAdapter{log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// ===================== Scheduler =====================

// AsynqScheduler implements Scheduler with asynq's periodic task scheduler.
type AsynqScheduler struct {
	scheduler *asynq.Scheduler
}

var _ Scheduler = (*AsynqScheduler)(nil)

func NewAsynqScheduler(redisURL string, log zerolog.Logger) (*AsynqScheduler, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger: zerologAdapter{log},
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("scheduled enqueue failed")
		},
	})
	return &AsynqScheduler{scheduler: s}, nil
}

func (s *AsynqScheduler) Schedule(cronspec string, t Task, opts ...EnqueueOption) (string, error) {
	return s.scheduler.Register(cronspec, asynq.NewTask(t.Type, t.Payload), asynqOptions(opts)...)
}

func (s *AsynqScheduler) Run(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.scheduler.Shutdown()
	return nil
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}

// zerologAdapter satisfies asynq.Logger.
type zerologAdapter struct {
	log zerolog.Logger
}

func (l zerologAdapter) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l zerologAdapter) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l zerologAdapter) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l zerologAdapter) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l zerologAdapter) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
