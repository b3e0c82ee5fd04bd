package mangascraper

import "context"

// Fetcher retrieves HTML documents from URLs.
// Implementations may use browser automation to handle JavaScript-rendered content.
type Fetcher interface {
	// Fetch retrieves the URL and returns its HTML.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases fetcher resources.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

// ResourceFetcher retrieves binary resources such as page images.
type ResourceFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}
