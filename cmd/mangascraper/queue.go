package main

import (
	"context"

	"github.com/blacker-cz/mangascraper/workqueue"
)

// await runs compute on the dependencies' work queue and drains the loop on
// the calling goroutine until the result has been delivered.
func await[T any](deps *Dependencies, compute func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(deps.Ctx)
	defer cancel()

	var (
		result    T
		resultErr error
		delivered bool
	)
	err := workqueue.Submit(workqueue.WithDispatcher(ctx, deps.Loop), deps.Queue, compute, func(v T, err error) {
		result, resultErr, delivered = v, err, true
		cancel()
	})
	if err != nil {
		return result, err
	}

	_ = deps.Loop.Run(ctx)
	if !delivered {
		var zero T
		return zero, deps.Ctx.Err()
	}
	return result, resultErr
}
