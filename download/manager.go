package download

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/fs"
	"github.com/blacker-cz/mangascraper/gate"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Task is a snapshot of one entry in the download list.
type Task struct {
	ID          string                   `json:"id"`
	Chapter     *mangascraper.Chapter    `json:"-"`
	Destination string                   `json:"destination"`
	Format      string                   `json:"format"`
	State       State                    `json:"state"`
	Progress    mangascraper.Progress    `json:"progress"`
	Completion  *mangascraper.Completion `json:"completion,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
}

type task struct {
	Task
	downloader *Downloader
	packager   mangascraper.Packager
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecords stores a DownloadRecord for every finished task.
func WithRecords(records mangascraper.RecordService) ManagerOption {
	return func(m *Manager) {
		m.records = records
	}
}

// WithDownloaderOptions applies opts to every Downloader the manager creates.
// The manager's gate always takes precedence over WithGate.
func WithDownloaderOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.downloaderOpts = append(m.downloaderOpts, opts...)
	}
}

// WithTaskObserver calls fn with a snapshot each time a task changes.
// fn may be called concurrently for different tasks.
func WithTaskObserver(fn func(Task)) ManagerOption {
	return func(m *Manager) {
		m.observe = fn
	}
}

// WithManagerLogger sets the logger for the manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager keeps the download list: it creates one Downloader per chapter,
// admits them through a shared gate and records their outcomes.
type Manager struct {
	registry       *mangascraper.SourceRegistry
	gate           *gate.Gate
	records        mangascraper.RecordService
	downloaderOpts []Option
	observe        func(Task)
	logger         *slog.Logger
	now            func() time.Time

	mu    sync.Mutex
	tasks []*task
	byID  map[string]*task
}

// NewManager creates a Manager resolving chapter sources through registry
// and admitting downloads through g.
func NewManager(registry *mangascraper.SourceRegistry, g *gate.Gate, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		gate:     g,
		byID:     make(map[string]*task),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Enqueue adds a chapter to the download list without starting it and
// returns the task ID.
func (m *Manager) Enqueue(chapter *mangascraper.Chapter, destination string, packager mangascraper.Packager) (string, error) {
	if chapter == nil {
		return "", mangascraper.Errorf(mangascraper.EINVALID, "chapter required")
	}
	if packager == nil {
		return "", mangascraper.Errorf(mangascraper.EINVALID, "packager required")
	}
	source, err := m.registry.Get(chapter.SourceID())
	if err != nil {
		return "", err
	}

	opts := append(append([]Option(nil), m.downloaderOpts...), WithGate(m.gate))
	t := &task{
		Task: Task{
			ID:          uuid.NewString(),
			Chapter:     chapter,
			Destination: destination,
			Format:      packager.Name(),
			State:       StateIdle,
			CreatedAt:   m.now(),
		},
		downloader: NewDownloader(source, opts...),
		packager:   packager,
	}

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.byID[t.ID] = t
	m.mu.Unlock()

	m.notify(t)
	return t.ID, nil
}

// Tasks returns snapshots of all tasks in enqueue order.
func (m *Manager) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]Task, len(m.tasks))
	for i, t := range m.tasks {
		tasks[i] = t.snapshot()
	}
	return tasks
}

// Task returns a snapshot of one task.
// Returns ENOTFOUND if the task does not exist.
func (m *Manager) Task(id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return Task{}, mangascraper.Errorf(mangascraper.ENOTFOUND, "task %q not found", id)
	}
	return t.snapshot(), nil
}

// Run starts one task and waits for it to finish.
func (m *Manager) Run(ctx context.Context, id string) (mangascraper.Completion, error) {
	m.mu.Lock()
	t, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return mangascraper.Completion{}, mangascraper.Errorf(mangascraper.ENOTFOUND, "task %q not found", id)
	}
	return m.run(ctx, t)
}

// DownloadAll starts every task that has not run yet and waits until all of
// them have finished. Concurrency is bounded by the manager's gate. A task
// that fails to start does not stop the others; the first such error is
// returned.
func (m *Manager) DownloadAll(ctx context.Context) error {
	m.mu.Lock()
	var pending []*task
	for _, t := range m.tasks {
		if t.State == StateIdle {
			pending = append(pending, t)
		}
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, t := range pending {
		g.Go(func() error {
			_, err := m.run(ctx, t)
			return err
		})
	}
	return g.Wait()
}

// Cancel requests cancellation of a task.
// Returns ENOTFOUND if the task does not exist.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return mangascraper.Errorf(mangascraper.ENOTFOUND, "task %q not found", id)
	}
	t.downloader.Cancel()
	return nil
}

// CancelAll requests cancellation of every running task.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	tasks := append([]*task(nil), m.tasks...)
	m.mu.Unlock()
	for _, t := range tasks {
		t.downloader.Cancel()
	}
}

// Clear removes finished tasks from the list and returns how many were removed.
func (m *Manager) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tasks[:0]
	removed := 0
	for _, t := range m.tasks {
		if t.State.Terminal() {
			delete(m.byID, t.ID)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	clear(m.tasks[len(kept):])
	m.tasks = kept
	return removed
}

func (m *Manager) run(ctx context.Context, t *task) (mangascraper.Completion, error) {
	observer := mangascraper.ObserverFuncs{
		ProgressFn: func(p mangascraper.Progress) {
			m.mu.Lock()
			t.Progress = p
			m.mu.Unlock()
			m.notify(t)
		},
		CompleteFn: func(c mangascraper.Completion) {
			m.mu.Lock()
			t.State = stateOf(c.Outcome)
			t.Completion = &c
			m.mu.Unlock()
			m.store(ctx, t, c)
			m.notify(t)
		},
	}

	m.mu.Lock()
	if t.State == StateRunning {
		m.mu.Unlock()
		return mangascraper.Completion{}, mangascraper.Errorf(mangascraper.EINVALIDOP, "task %q already running", t.ID)
	}
	t.State = StateRunning
	t.Completion = nil
	m.mu.Unlock()

	if err := t.downloader.Start(ctx, t.Chapter, t.Destination, t.packager, observer); err != nil {
		m.mu.Lock()
		t.State = StateFailed
		t.Completion = &mangascraper.Completion{Outcome: mangascraper.OutcomeFailed, Err: err}
		m.mu.Unlock()
		m.notify(t)
		return mangascraper.Completion{}, err
	}
	m.notify(t)

	<-t.downloader.Done()
	c, _ := t.downloader.Completion()
	return c, nil
}

// store persists the outcome of a task. Failures are logged, not returned.
func (m *Manager) store(ctx context.Context, t *task, c mangascraper.Completion) {
	if m.records == nil {
		return
	}

	record := &mangascraper.DownloadRecord{
		SourceID:       t.Chapter.SourceID(),
		ChapterID:      t.Chapter.ID(),
		ChapterName:    t.Chapter.Name(),
		CollectionName: t.Chapter.CollectionName(),
		ChapterURL:     t.Chapter.URL(),
		Outcome:        c.Outcome,
		OutputPath:     c.OutputPath,
		Pages:          c.Pages,
		Skipped:        c.Skipped,
		CreatedAt:      m.now(),
	}
	if c.Err != nil {
		record.Error = c.Err.Error()
	}
	if c.Outcome == mangascraper.OutcomeCompleted && c.OutputPath != "" {
		hash, err := fs.HashPath(c.OutputPath)
		if err != nil {
			m.logger.Warn("hash artifact", "path", c.OutputPath, "err", err)
		}
		record.ContentHash = hash
	}

	if err := m.records.StoreRecord(context.WithoutCancel(ctx), record); err != nil {
		m.logger.Error("store download record", "task", t.ID, "err", err)
	}
}

func (m *Manager) notify(t *task) {
	if m.observe == nil {
		return
	}
	m.mu.Lock()
	snap := t.snapshot()
	m.mu.Unlock()
	m.observe(snap)
}

// snapshot copies the task. Callers must hold the manager's lock.
func (t *task) snapshot() Task {
	snap := t.Task
	if t.Completion != nil {
		c := *t.Completion
		snap.Completion = &c
	}
	return snap
}
