package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

// Task is a best-effort side effect, e.g. a CRM note.
type Task func(ctx context.Context) error

type queuedTask struct {
	name string
	ctx  context.Context
	fn   Task
}

// TaskRunner runs best-effort work on a fixed pool of workers so callers can
// hand it off without waiting and without spawning unbounded goroutines.
// Failures are still logged and counted.
type TaskRunner struct {
	Logger  *slog.Logger
	Workers int
	Timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan queuedTask
	group   errgroup.Group
	started bool
}

// NewTaskRunner creates a runner. Zero values fall back to 4 workers, a queue
// of 256 and a 30s per-task timeout.
func NewTaskRunner(logger *slog.Logger, workers, queueSize int, timeout time.Duration) *TaskRunner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskRunner{
		Logger:  logger,
		Workers: workers,
		Timeout: timeout,
		queue:   make(chan queuedTask, queueSize),
	}
}

// Start launches the workers. It is non-blocking.
func (r *TaskRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.Workers; i++ {
		r.group.Go(func() error {
			for t := range r.queue {
				r.run(t)
			}
			return nil
		})
	}
	r.Logger.Info("task runner started", "workers", r.Workers, "queue", cap(r.queue))
}

// Stop refuses new work, drains what is queued and waits for the workers.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		// Nobody will drain it, run what's left inline
		for t := range r.queue {
			r.run(t)
		}
	}
	_ = r.group.Wait()
	r.Logger.Info("task runner stopped")
}

// Submit queues fn without blocking. It reports false when the task was
// dropped because the queue is full or the runner is stopping.
//
// The task gets a context detached from ctx's cancellation but carrying its
// values (logger, trace), so a disconnecting client does not cancel it.
func (r *TaskRunner) Submit(ctx context.Context, name string, fn Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.closed {
		select {
		case r.queue <- queuedTask{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
			return true
		default:
		}
	}

	metrics.TasksDropped.WithLabelValues(name).Inc()
	slogx.FromContext(ctx).Warn("best-effort task dropped",
		slog.String("task", name),
		slog.Bool("stopping", r.closed),
	)
	return false
}

func (r *TaskRunner) run(t queuedTask) {
	ctx, cancel := context.WithTimeout(t.ctx, r.Timeout)
	defer cancel()

	log := slogx.FromContext(ctx).With(slog.String("task", t.name))

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task panicked: %v", p)
			}
		}()
		return t.fn(ctx)
	}()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		log.Warn("best-effort task failed", slog.Any("error", err))
	} else {
		log.Debug("best-effort task done")
	}
	metrics.TasksCompleted.WithLabelValues(t.name, outcome).Inc()
}
