package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type task struct {
	kind string
	fn   func(context.Context) error
}

// taskQueue runs side effects in FIFO order on one goroutine so the hub never
// waits on storage or the network.
type taskQueue struct {
	name    string
	tasks   chan task
	timeout time.Duration
	log     *zerolog.Logger
}

func newTaskQueue(name string, size int, timeout time.Duration, logger *zerolog.Logger) *taskQueue {
	if size <= 0 {
		size = 1
	}
	return &taskQueue{
		name:    name,
		tasks:   make(chan task, size),
		timeout: timeout,
		log:     logger,
	}
}

// enqueue schedules fn and reports false when the queue is full.
func (q *taskQueue) enqueue(kind string, fn func(context.Context) error) bool {
	select {
	case q.tasks <- task{kind: kind, fn: fn}:
		return true
	default:
		q.log.Warn().Str("queue", q.name).Str("kind", kind).Msg("queue full, dropping task")
		return false
	}
}

// run executes tasks until ctx is done, then drains what is already queued.
func (q *taskQueue) run(ctx context.Context) {
	for {
		select {
		case t := <-q.tasks:
			q.exec(ctx, t)
		case <-ctx.Done():
			for {
				select {
				case t := <-q.tasks:
					q.exec(context.Background(), t)
				default:
					return
				}
			}
		}
	}
}

func (q *taskQueue) exec(parent context.Context, t task) {
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		q.log.Warn().Err(err).Str("queue", q.name).Str("kind", t.kind).Msg("task failed")
	}
}
