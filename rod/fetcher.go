// Package rod implements mangascraper.Fetcher with headless Chrome for
// sources whose chapter lists or reader pages are rendered by JavaScript.
package rod

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout bounds a single page render.
const DefaultFetchTimeout = 30 * time.Second

var _ mangascraper.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager   *BrowserManager
	timeout   time.Duration
	budget    RenderBudget
	userAgent string
	logger    *slog.Logger
	closed    atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRenderBudget sets how many pages a browser renders before it is
// replaced.
func WithRenderBudget(budget RenderBudget) Option {
	return func(f *Fetcher) {
		f.budget = budget
	}
}

// WithLogger sets the logger for browser lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithUserAgent overrides the browser's user agent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns EFETCH if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout: DefaultFetchTimeout,
		budget:  DefaultRenderBudget(),
	}
	for _, opt := range opts {
		opt(f)
	}

	manager, err := NewBrowserManager(WithBudget(f.budget), WithManagerLogger(f.logger))
	if err != nil {
		return nil, err
	}
	f.manager = manager

	return f, nil
}

// Fetch navigates to the URL and returns the rendered HTML. Each render
// counts against the budget of the browser for the URL's host.
// Returns EINVALID after Close or for a URL without a host.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (html string, err error) {
	if f.closed.Load() {
		return "", mangascraper.Errorf(mangascraper.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", mangascraper.Errorf(mangascraper.EINVALID, "invalid page URL %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	browser, release, err := f.manager.Acquire(u.Hostname())
	if err != nil {
		return "", err
	}
	defer func() { release(err == nil) }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", mangascraper.WrapError(mangascraper.EFETCH, err, "open tab")
	}
	defer page.Close()

	page = page.Context(ctx)

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return "", err
		}
	}

	if err := page.Navigate(rawURL); err != nil {
		return "", fetchErr(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fetchErr(ctx, err)
	}

	html, err = page.HTML()
	if err != nil {
		return "", fetchErr(ctx, err)
	}
	return html, nil
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

// fetchErr prefers the context error so timeouts are recognisable by callers.
func fetchErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
