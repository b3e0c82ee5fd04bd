package workqueue

import (
	"context"
	"sync"
)

// Dispatcher delivers completion callbacks to an execution context, such as
// a UI or CLI goroutine.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

type dispatcherKey struct{}

// WithDispatcher returns a context whose submitted work completes on d.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// DispatcherFrom returns the dispatcher attached to ctx, or nil.
func DispatcherFrom(ctx context.Context) Dispatcher {
	if d, ok := ctx.Value(dispatcherKey{}).(Dispatcher); ok && d != nil {
		return d
	}
	return nil
}

// serialDispatcher runs callbacks one at a time, in dispatch order, on a
// goroutine of its own. The goroutine exits once the backlog is empty.
type serialDispatcher struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (d *serialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	go d.drain()
}

func (d *serialDispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		fn := d.pending[0]
		d.pending[0] = nil
		d.pending = d.pending[1:]
		d.mu.Unlock()

		fn()
	}
}

// inline runs callbacks on the calling goroutine. Only Call uses it, where
// the callback just hands a result to a buffered channel.
var inline = DispatcherFunc(func(fn func()) { fn() })

// Loop is a Dispatcher backed by a callback list that one goroutine drains
// by calling Run. Dispatch never blocks.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	signal  chan struct{}
}

// NewLoop returns an empty Loop.
func NewLoop() *Loop {
	return &Loop{signal: make(chan struct{}, 1)}
}

// Dispatch queues fn to run on the goroutine calling Run.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Run executes queued callbacks in order until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
			l.RunPending()
		}
	}
}

// RunPending executes the callbacks queued so far and returns how many ran.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}
