package rod

import (
	"log/slog"
	"sync"

	"github.com/blacker-cz/mangascraper"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// instance is one launched browser and the renders it has served.
type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	ledger   *RenderLedger
	inflight int
	retired  bool
}

func (in *instance) close() error {
	err := in.browser.Close()
	in.launcher.Kill()
	return err
}

// BrowserManager hands out browsers for page renders. Each browser has a
// RenderBudget; once it is spent the next render goes to a freshly launched
// browser, and the old one is closed when its last in-flight render ends.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu      sync.Mutex
	current *instance
	retired map[*instance]struct{}
	closed  bool

	budget RenderBudget
	logger *slog.Logger
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithBudget sets the render budget of each browser.
func WithBudget(budget RenderBudget) ManagerOption {
	return func(bm *BrowserManager) {
		bm.budget = budget
	}
}

// WithManagerLogger sets the logger for browser launches and retirements.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(bm *BrowserManager) {
		bm.logger = logger
	}
}

// NewBrowserManager launches a headless Chrome browser.
// Close must be called when the BrowserManager is no longer needed.
//
// Returns EFETCH if the browser cannot be launched.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		retired: make(map[*instance]struct{}),
		budget:  DefaultRenderBudget(),
	}
	for _, opt := range opts {
		opt(bm)
	}
	if bm.logger == nil {
		bm.logger = slog.New(slog.DiscardHandler)
	}

	in, err := bm.launch()
	if err != nil {
		return nil, err
	}
	bm.current = in
	return bm, nil
}

// Acquire returns the browser to render a page of host on. The caller must
// call release once the render is over; rendered reports whether a page was
// actually rendered and counts against the browser's budget.
//
// Returns EINVALID after Close. A failed relaunch keeps the spent browser
// in service.
func (bm *BrowserManager) Acquire(host string) (browser *rod.Browser, release func(rendered bool), err error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, nil, mangascraper.Errorf(mangascraper.EINVALID, "browser manager is closed")
	}

	if bm.current.ledger.Spent() {
		if next, err := bm.launch(); err != nil {
			bm.logger.Warn("browser relaunch failed, keeping spent browser", "error", err)
		} else {
			bm.retire(bm.current)
			bm.current = next
		}
	}

	in := bm.current
	in.inflight++

	var once sync.Once
	release = func(rendered bool) {
		once.Do(func() { bm.release(in, host, rendered) })
	}
	return in.browser, release, nil
}

func (bm *BrowserManager) release(in *instance, host string, rendered bool) {
	bm.mu.Lock()
	in.inflight--
	if rendered {
		in.ledger.Record(host)
	}
	idle := in.retired && in.inflight == 0 && !bm.closed
	if idle {
		delete(bm.retired, in)
	}
	bm.mu.Unlock()

	if idle {
		bm.logger.Debug("closing retired browser", "renders", in.ledger.Renders(""))
		_ = in.close()
	}
}

// retire takes in out of service. It is closed right away when idle.
// Must be called with mu held.
func (bm *BrowserManager) retire(in *instance) {
	in.retired = true
	if in.inflight > 0 {
		bm.retired[in] = struct{}{}
		return
	}
	bm.logger.Debug("closing retired browser", "renders", in.ledger.Renders(""))
	_ = in.close()
}

// Close shuts down every browser, including retired ones still rendering.
// Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true

	for in := range bm.retired {
		_ = in.close()
	}
	bm.retired = nil
	return bm.current.close()
}

// LauncherPID returns the process ID of the current browser launcher, or 0
// once closed.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return 0
	}
	return bm.current.launcher.PID()
}

// launch starts a browser with flags that keep background reader tabs
// rendering at full speed.
func (bm *BrowserManager) launch() (*instance, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)

	u, err := l.Launch()
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.EFETCH, err, "launch browser")
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, mangascraper.WrapError(mangascraper.EFETCH, err, "connect to browser")
	}

	bm.logger.Debug("browser launched", "pid", l.PID())
	return &instance{
		browser:  browser,
		launcher: l,
		ledger:   NewRenderLedger(bm.budget),
	}, nil
}
