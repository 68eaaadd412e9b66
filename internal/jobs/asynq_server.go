package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       *zap.Logger
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Queue     string
	Logger    *zap.Logger
	Integrity *IntegrityHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Integrity == nil {
		return nil, errors.New("worker: integrity handler is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueDefault
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{queue: 1},
		Logger:      log.Named("asynq").Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskIntegrityCheck, cfg.Integrity)

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			opts := append([]asynq.Option{asynq.Queue(queue)}, entry.Options...)
			if _, err := scheduler.Register(entry.Spec, entry.Task, opts...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: log}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.log.Info("worker started")

	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, queue string) *Client {
	if queue == "" {
		queue = QueueDefault
	}
	return &Client{client: asynq.NewClient(redisOpts), queue: queue}
}

// EnqueueIntegrityCheck asks the worker to check one account, or all of them
// when accountID is zero.
func (c *Client) EnqueueIntegrityCheck(ctx context.Context, accountID int64) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityCheckTask(IntegrityCheckPayload{AccountID: accountID})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(3))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
