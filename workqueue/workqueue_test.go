package workqueue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Order(t *testing.T) {
	t.Parallel()

	q := workqueue.New()
	q.Start()
	defer q.Stop()

	var (
		mu      sync.Mutex
		order   []int
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := range 10 {
		wg.Add(1)
		err := q.Submit(context.Background(), func(context.Context) (any, error) {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			active.Add(-1)
			return i, nil
		}, func(any, error) { wg.Done() })
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.False(t, overlap.Load(), "computes overlapped")
}

func TestQueue_DefaultCompletionOrder(t *testing.T) {
	t.Parallel()

	q := workqueue.New()
	q.Start()
	defer q.Stop()

	var (
		order   []int
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := range 20 {
		wg.Add(1)
		err := q.Submit(context.Background(), func(context.Context) (any, error) {
			return i, nil
		}, func(v any, _ error) {
			defer wg.Done()
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			// Slow callbacks let later computes finish first.
			time.Sleep(time.Millisecond)
			order = append(order, v.(int))
			active.Add(-1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
	assert.False(t, overlap.Load(), "completions overlapped")
}

func TestQueue_SubmitBeforeStart(t *testing.T) {
	t.Parallel()

	q := workqueue.New()
	defer q.Stop()

	got := make(chan any, 1)
	require.NoError(t, q.Submit(context.Background(), func(context.Context) (any, error) {
		return "early", nil
	}, func(v any, _ error) { got <- v }))
	assert.Equal(t, 1, q.Len())

	q.Start()

	select {
	case v := <-got:
		assert.Equal(t, "early", v)
	case <-time.After(time.Second):
		t.Fatal("item submitted before Start never ran")
	}
}

func TestQueue_CompletionOnDispatcher(t *testing.T) {
	t.Parallel()

	q := workqueue.New()
	q.Start()
	defer q.Stop()

	loop := workqueue.NewLoop()
	ctx := workqueue.WithDispatcher(context.Background(), loop)

	var result any
	var resultErr error
	done := make(chan struct{})
	require.NoError(t, q.Submit(ctx, func(context.Context) (any, error) {
		return 42, nil
	}, func(v any, err error) {
		result, resultErr = v, err
		close(done)
	}))

	// The callback only runs when the loop is drained on this goroutine.
	require.Eventually(t, func() bool { return loop.RunPending() == 1 }, time.Second, time.Millisecond)
	<-done

	require.NoError(t, resultErr)
	assert.Equal(t, 42, result)
}

func TestQueue_Panics(t *testing.T) {
	t.Parallel()

	t.Run("compute panic becomes internal error", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		q.Start()
		defer q.Stop()

		_, err := workqueue.Call(context.Background(), q, func(context.Context) (int, error) {
			panic("kaboom")
		})

		assert.Equal(t, mangascraper.EINTERNAL, mangascraper.ErrorCode(err))

		// The worker survives.
		v, err := workqueue.Call(context.Background(), q, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("completion panic is contained", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		q.Start()
		defer q.Stop()

		loop := workqueue.NewLoop()
		ctx := workqueue.WithDispatcher(context.Background(), loop)
		require.NoError(t, q.Submit(ctx, func(context.Context) (any, error) { return nil, nil }, func(any, error) {
			panic("in callback")
		}))

		assert.NotPanics(t, func() {
			require.Eventually(t, func() bool { return loop.RunPending() == 1 }, time.Second, time.Millisecond)
		})
	})
}

func TestQueue_Stop(t *testing.T) {
	t.Parallel()

	t.Run("submit after stop is invalid operation", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		q.Start()
		q.Stop()
		q.Stop()

		err := q.Submit(context.Background(), func(context.Context) (any, error) { return nil, nil }, nil)

		assert.Equal(t, mangascraper.EINVALIDOP, mangascraper.ErrorCode(err))
	})

	t.Run("pending items are aborted", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		var ran atomic.Bool
		errs := make(chan error, 2)
		for range 2 {
			require.NoError(t, q.Submit(context.Background(), func(context.Context) (any, error) {
				ran.Store(true)
				return nil, nil
			}, func(_ any, err error) { errs <- err }))
		}

		q.Stop()

		for range 2 {
			select {
			case err := <-errs:
				assert.Equal(t, mangascraper.ECANCELED, mangascraper.ErrorCode(err))
			case <-time.After(time.Second):
				t.Fatal("aborted item did not complete")
			}
		}
		assert.False(t, ran.Load())
	})

	t.Run("in-flight compute finishes", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		q.Start()

		entered := make(chan struct{})
		release := make(chan struct{})
		results := make(chan error, 2)
		require.NoError(t, q.Submit(context.Background(), func(context.Context) (any, error) {
			close(entered)
			<-release
			return nil, nil
		}, func(_ any, err error) { results <- err }))
		require.NoError(t, q.Submit(context.Background(), func(context.Context) (any, error) {
			return nil, errors.New("should not run")
		}, func(_ any, err error) { results <- err }))

		<-entered
		stopped := make(chan struct{})
		go func() {
			q.Stop()
			close(stopped)
		}()
		time.Sleep(20 * time.Millisecond)
		close(release)
		<-stopped

		var codes []string
		for range 2 {
			codes = append(codes, mangascraper.ErrorCode(<-results))
		}
		assert.ElementsMatch(t, []string{"", mangascraper.ECANCELED}, codes)
	})
}

func TestCall(t *testing.T) {
	t.Parallel()

	t.Run("returns typed result", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New()
		q.Start()
		defer q.Stop()

		v, err := workqueue.Call(context.Background(), q, func(context.Context) (string, error) {
			return "hello", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})

	t.Run("context done while waiting", func(t *testing.T) {
		t.Parallel()

		q := workqueue.New() // never started
		defer q.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := workqueue.Call(ctx, q, func(context.Context) (int, error) { return 1, nil })

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
