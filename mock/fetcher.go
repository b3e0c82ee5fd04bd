package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of mangascraper.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

var _ mangascraper.ResourceFetcher = (*ResourceFetcher)(nil)

// ResourceFetcher is a mock implementation of mangascraper.ResourceFetcher.
type ResourceFetcher struct {
	FetchBytesFn func(ctx context.Context, url string) ([]byte, error)
}

func (f *ResourceFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return f.FetchBytesFn(ctx, url)
}
