// Package workqueue runs background work one item at a time, in submission
// order, and hands each result back to the submitter's execution context.
package workqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blacker-cz/mangascraper"
	"github.com/google/uuid"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger for the queue.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

type item struct {
	id         string
	ctx        context.Context
	compute    func(ctx context.Context) (any, error)
	onComplete func(result any, err error)
	dispatcher Dispatcher
}

// Queue is a single-worker FIFO. At most one compute runs at any time, and
// completions are delivered through the Dispatcher carried by the submit
// context. Without one, completions run in submission order on a goroutine
// owned by the queue, one at a time and never on the worker.
type Queue struct {
	mu      sync.Mutex
	items   []*item
	stopped bool

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool

	completions *serialDispatcher
	logger      *slog.Logger
}

// New returns a queue. Work may be submitted before Start.
func New(opts ...Option) *Queue {
	q := &Queue{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),

		completions: &serialDispatcher{},
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.New(slog.DiscardHandler)
	}
	return q
}

// Start launches the worker. Calling Start more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return
		}
		q.started = true
		q.mu.Unlock()
		go q.run()
	})
}

// Stop signals the worker, waits for an in-flight compute to finish and
// aborts the items still pending: each receives an ECANCELED error.
// Stop is idempotent.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		started := q.started
		q.mu.Unlock()

		close(q.stop)
		if started {
			<-q.done
		}

		q.mu.Lock()
		pending := q.items
		q.items = nil
		q.mu.Unlock()

		for _, it := range pending {
			q.complete(it, nil, mangascraper.Errorf(mangascraper.ECANCELED, "work item %s aborted: queue stopped", it.id))
		}
	})
}

// Submit appends a work item. compute runs on the worker; onComplete (which
// may be nil) runs on the dispatcher attached to ctx.
// Returns EINVALIDOP once the queue has been stopped.
func (q *Queue) Submit(ctx context.Context, compute func(ctx context.Context) (any, error), onComplete func(result any, err error)) error {
	if compute == nil {
		return mangascraper.Errorf(mangascraper.EINVALID, "compute function required")
	}

	it := &item{
		id:         uuid.NewString(),
		ctx:        ctx,
		compute:    compute,
		onComplete: onComplete,
		dispatcher: DispatcherFrom(ctx),
	}
	if it.dispatcher == nil {
		it.dispatcher = q.completions
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return mangascraper.Errorf(mangascraper.EINVALIDOP, "queue stopped")
	}
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}

	q.logger.Debug("work submitted", "id", it.id)
	return nil
}

// Len returns the number of items waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		select {
		case <-q.stop:
			return
		case <-q.signal:
		}

		for {
			// Stop takes priority over remaining work.
			select {
			case <-q.stop:
				return
			default:
			}

			it := q.pop()
			if it == nil {
				break
			}
			result, err := q.execute(it)
			q.complete(it, result, err)
		}
	}
}

func (q *Queue) pop() *item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return it
}

func (q *Queue) execute(it *item) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("work panicked", "id", it.id, "panic", r)
			result = nil
			err = mangascraper.WrapError(mangascraper.EINTERNAL, fmt.Errorf("%v", r), "work item %s panicked", it.id)
		}
	}()
	return it.compute(it.ctx)
}

func (q *Queue) complete(it *item, result any, err error) {
	if it.onComplete == nil {
		return
	}
	it.dispatcher.Dispatch(func() {
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error("completion panicked", "id", it.id, "panic", r)
			}
		}()
		it.onComplete(result, err)
	})
}

// Submit is the typed form of Queue.Submit.
func Submit[T any](ctx context.Context, q *Queue, compute func(ctx context.Context) (T, error), onComplete func(result T, err error)) error {
	var done func(any, error)
	if onComplete != nil {
		done = func(result any, err error) {
			v, _ := result.(T)
			onComplete(v, err)
		}
	}
	return q.Submit(ctx, func(ctx context.Context) (any, error) {
		return compute(ctx)
	}, done)
}

type outcome[T any] struct {
	value T
	err   error
}

// Call submits compute and blocks until it completes or ctx is done.
func Call[T any](ctx context.Context, q *Queue, compute func(ctx context.Context) (T, error)) (T, error) {
	results := make(chan outcome[T], 1)
	err := Submit(WithDispatcher(ctx, inline), q, compute, func(v T, err error) {
		results <- outcome[T]{value: v, err: err}
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-results:
		return r.value, r.err
	}
}
