package download

import (
	"context"
	"time"

	"github.com/blacker-cz/mangascraper"
)

// FetchFunc is the signature for a page fetch function.
type FetchFunc func(ctx context.Context, locator string) ([]byte, error)

// LogFunc is the signature for a logging function. It matches the methods
// of *slog.Logger so logger.Debug can be passed directly.
type LogFunc func(msg string, args ...any)

// DefaultRetryDelays returns the delays between page fetch attempts:
// 500ms, 500ms (3 attempts in total).
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}
}

// FetchWithRetry fetches locator, retrying with the default delays.
func FetchWithRetry(ctx context.Context, locator string, fetch FetchFunc, logger LogFunc) ([]byte, error) {
	return FetchWithRetryDelays(ctx, locator, fetch, logger, DefaultRetryDelays())
}

// FetchWithRetryDelays is like FetchWithRetry but allows configurable delays.
// One attempt is made per delay plus an initial attempt. When every attempt
// fails the last error is returned wrapped as EFETCH; context errors are
// returned as they are.
func FetchWithRetryDelays(ctx context.Context, locator string, fetch FetchFunc, logger LogFunc, delays []time.Duration) ([]byte, error) {
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, err := fetch(ctx, locator)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= maxAttempts-1 {
			break
		}

		if logger != nil {
			logger("retrying fetch", "locator", locator, "attempt", attempt+2, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return nil, mangascraper.WrapError(mangascraper.EFETCH, lastErr, "fetch %s failed after %d attempts", locator, maxAttempts)
}
