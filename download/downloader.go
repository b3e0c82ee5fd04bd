// Package download implements the chapter fetch pipeline: admission through
// a shared gate, page resolution, page fetching with retry, packaging and
// progress reporting.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/fs"
	"github.com/blacker-cz/mangascraper/gate"
)

// State is the lifecycle state of a Downloader.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

func stateOf(o mangascraper.Outcome) State {
	switch o {
	case mangascraper.OutcomeCompleted:
		return StateCompleted
	case mangascraper.OutcomeCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithGate makes runs wait for a unit of g before resolving pages.
// Downloaders sharing a gate are admitted in arrival order.
func WithGate(g *gate.Gate) Option {
	return func(d *Downloader) {
		d.gate = g
	}
}

// WithRetryDelays sets the delays between page fetch attempts.
// Defaults to DefaultRetryDelays if not specified.
func WithRetryDelays(delays []time.Duration) Option {
	return func(d *Downloader) {
		d.retryDelays = delays
	}
}

// WithLogger sets the logger for the downloader.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// WithLimiter rate limits page fetches per host.
func WithLimiter(limiter mangascraper.DomainLimiter) Option {
	return func(d *Downloader) {
		d.limiter = limiter
	}
}

// WithProcessor transforms every fetched page before it is stored.
func WithProcessor(p mangascraper.PageProcessor) Option {
	return func(d *Downloader) {
		d.processor = p
	}
}

// Downloader runs the fetch pipeline for chapters of one source.
// Only one run may be active at a time; a Downloader may be reused once its
// run has ended.
type Downloader struct {
	source      mangascraper.Source
	gate        *gate.Gate
	limiter     mangascraper.DomainLimiter
	processor   mangascraper.PageProcessor
	retryDelays []time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	state   State
	session *session
}

// NewDownloader creates a Downloader for chapters owned by source.
func NewDownloader(source mangascraper.Source, opts ...Option) *Downloader {
	d := &Downloader{
		source:      source,
		retryDelays: DefaultRetryDelays(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// session is the mutable state of one run.
type session struct {
	observer mangascraper.DownloadObserver
	cancel   context.CancelFunc
	done     chan struct{}

	cancelled atomic.Bool

	mu         sync.Mutex
	total      int
	completed  int
	completion mangascraper.Completion
}

// progress reports the current percentage with a message.
func (s *session) progress(format string, args ...any) {
	s.mu.Lock()
	percent := s.completed * 100 / s.total
	s.mu.Unlock()
	s.observer.OnProgress(mangascraper.Progress{Percent: percent, Message: fmt.Sprintf(format, args...)})
}

func (s *session) addTasks(n int) {
	s.mu.Lock()
	s.total += n
	s.mu.Unlock()
}

func (s *session) completeTask() {
	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

// State returns the current state.
func (d *Downloader) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start validates its arguments and begins downloading chapter into
// destination on a new goroutine. Invalid arguments are reported as EINVALID
// and a concurrent Start as EINVALIDOP; every later failure is reported to
// observer.OnComplete. observer may be nil.
func (d *Downloader) Start(ctx context.Context, chapter *mangascraper.Chapter, destination string, packager mangascraper.Packager, observer mangascraper.DownloadObserver) error {
	if chapter == nil {
		return mangascraper.Errorf(mangascraper.EINVALID, "chapter required")
	}
	if err := chapter.Validate(); err != nil {
		return err
	}
	if chapter.SourceID() != d.source.ID() {
		return mangascraper.Errorf(mangascraper.EINVALID, "chapter belongs to source %q, not %q", chapter.SourceID(), d.source.ID())
	}
	if packager == nil {
		return mangascraper.Errorf(mangascraper.EINVALID, "packager required")
	}
	if destination == "" {
		return mangascraper.Errorf(mangascraper.EINVALID, "destination required")
	}
	if observer == nil {
		observer = mangascraper.ObserverFuncs{}
	}

	d.mu.Lock()
	if d.state == StateRunning {
		d.mu.Unlock()
		return mangascraper.Errorf(mangascraper.EINVALIDOP, "download already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		observer: observer,
		cancel:   cancel,
		done:     make(chan struct{}),
		total:    1,
	}
	d.session = s
	d.state = StateRunning
	d.mu.Unlock()

	go d.run(runCtx, s, chapter, destination, packager)
	return nil
}

// Cancel requests cooperative cancellation of the active run. The run stops
// at its next cancellation point: before admission, after page resolution,
// between page fetches and before packaging. Cancel is a no-op when idle.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	s := d.session
	running := d.state == StateRunning
	d.mu.Unlock()

	if s != nil && running {
		s.cancelled.Store(true)
		s.cancel()
	}
}

// Done returns a channel closed when the current run has ended and its
// completion has been delivered. Before the first Start it is already closed.
func (d *Downloader) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return d.session.done
}

// Wait blocks until the current run ends and returns its completion.
func (d *Downloader) Wait(ctx context.Context) (mangascraper.Completion, error) {
	select {
	case <-ctx.Done():
		return mangascraper.Completion{}, ctx.Err()
	case <-d.Done():
	}
	c, _ := d.Completion()
	return c, nil
}

// Completion returns the outcome of the last finished run. The bool result
// is false while a run is active or before the first run.
func (d *Downloader) Completion() (mangascraper.Completion, bool) {
	d.mu.Lock()
	s, state := d.session, d.state
	d.mu.Unlock()

	if s == nil || !state.Terminal() {
		return mangascraper.Completion{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completion, true
}

func (d *Downloader) run(ctx context.Context, s *session, chapter *mangascraper.Chapter, destination string, packager mangascraper.Packager) {
	defer close(s.done)
	defer s.cancel()

	// execute releases the gate permit before returning.
	c := d.execute(ctx, s, chapter, destination, packager)

	s.mu.Lock()
	s.completion = c
	s.mu.Unlock()

	d.mu.Lock()
	d.state = stateOf(c.Outcome)
	d.mu.Unlock()

	s.observer.OnComplete(c)
}

func (d *Downloader) execute(ctx context.Context, s *session, chapter *mangascraper.Chapter, destination string, packager mangascraper.Packager) mangascraper.Completion {
	logger := d.logger.With("source", chapter.SourceID(), "chapter", chapter.ID())
	cancelled := func() bool {
		return s.cancelled.Load() || ctx.Err() != nil
	}

	if cancelled() {
		return cancelledCompletion(0, 0)
	}

	if d.gate != nil {
		s.progress("Waiting for a download slot")
		permit, err := d.gate.Enter(ctx)
		if err != nil {
			return cancelledCompletion(0, 0)
		}
		defer func() { _ = permit.Release() }()
	}

	pages, err := d.source.ResolvePages(ctx, chapter)
	if err != nil {
		if cancelled() {
			return cancelledCompletion(0, 0)
		}
		return failed(resolutionError(err, chapter))
	}
	pages = uniqueOrdinals(pages)

	s.addTasks(len(pages) + 1)
	s.completeTask()
	s.progress("Resolved %d pages", len(pages))

	if cancelled() {
		return cancelledCompletion(0, 0)
	}

	ws, err := fs.NewWorkspace(destination)
	if err != nil {
		return failed(mangascraper.WrapError(mangascraper.EPACKAGE, err, "create workspace in %s", destination))
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			logger.Warn("workspace cleanup failed", "dir", ws.Dir(), "err", err)
		}
	}()

	var written, skipped int
	for i, page := range pages {
		if cancelled() {
			return cancelledCompletion(written, skipped)
		}

		s.progress("Downloading page %d of %d", i+1, len(pages))
		data, err := d.fetchPage(ctx, page)
		if err == nil {
			_, err = ws.Save(fs.PageFileName(page.Ordinal, data), data)
			if err != nil {
				return failed(mangascraper.WrapError(mangascraper.EINTERNAL, err, "store page %d", page.Ordinal))
			}
			written++
		} else {
			if cancelled() {
				return cancelledCompletion(written, skipped)
			}
			logger.Warn("page skipped", "ordinal", page.Ordinal, "locator", page.Locator, "err", err)
			skipped++
		}
		s.completeTask()
		s.progress("Downloaded page %d of %d", i+1, len(pages))
	}

	if cancelled() {
		return cancelledCompletion(written, skipped)
	}

	// Past the last cancellation point the run finishes on its own.
	s.progress("Packaging %s", packager.Name())
	out, err := packager.Save(context.WithoutCancel(ctx), chapter, ws.Dir(), destination)
	if err != nil {
		return failed(packagingError(err, packager))
	}
	s.completeTask()
	s.progress("Saved %s", out)

	logger.Info("chapter downloaded", "output", out, "pages", written, "skipped", skipped)
	return mangascraper.Completion{
		Outcome:    mangascraper.OutcomeCompleted,
		OutputPath: out,
		Pages:      written,
		Skipped:    skipped,
	}
}

// fetchPage resolves and fetches one page with retry, then applies the
// page processor.
func (d *Downloader) fetchPage(ctx context.Context, page mangascraper.Page) ([]byte, error) {
	data, err := FetchWithRetryDelays(ctx, page.Locator, func(ctx context.Context, _ string) ([]byte, error) {
		target, err := d.source.ResolveFetchLocator(ctx, page)
		if err != nil {
			return nil, err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx, HostOf(target)); err != nil {
				return nil, err
			}
		}
		return d.source.Fetch(ctx, target)
	}, d.logger.Debug, d.retryDelays)
	if err != nil {
		return nil, err
	}

	if d.processor != nil {
		return d.processor.Process(ctx, data)
	}
	return data, nil
}

// uniqueOrdinals returns pages with colliding ordinals moved to random
// unused ordinals. The input slice is not modified.
func uniqueOrdinals(pages []mangascraper.Page) []mangascraper.Page {
	out := make([]mangascraper.Page, len(pages))
	used := make(map[int]bool, len(pages))
	for i, p := range pages {
		for used[p.Ordinal] {
			p.Ordinal = rand.IntN(math.MaxInt32)
		}
		used[p.Ordinal] = true
		out[i] = p
	}
	return out
}

func cancelledCompletion(pages, skipped int) mangascraper.Completion {
	return mangascraper.Completion{Outcome: mangascraper.OutcomeCancelled, Pages: pages, Skipped: skipped}
}

func failed(err error) mangascraper.Completion {
	return mangascraper.Completion{Outcome: mangascraper.OutcomeFailed, Err: err}
}

func resolutionError(err error, chapter *mangascraper.Chapter) error {
	if mangascraper.ErrorCode(err) != mangascraper.EINTERNAL {
		return err
	}
	return mangascraper.WrapError(mangascraper.ERESOLVE, err, "resolve pages of %s", chapter)
}

func packagingError(err error, packager mangascraper.Packager) error {
	if mangascraper.ErrorCode(err) != mangascraper.EINTERNAL {
		return err
	}
	return mangascraper.WrapError(mangascraper.EPACKAGE, err, "%s packager", packager.Name())
}
