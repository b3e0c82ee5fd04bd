package mangascraper

import "context"

// Outcome is the terminal state of a download run.
type Outcome string

// Download outcomes. Cancellation is an outcome, not an error.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Progress reports the state of a running download.
type Progress struct {
	Percent int    `json:"percent"` // 0-100
	Message string `json:"message"`
}

// Completion is signaled exactly once when a download run ends.
type Completion struct {
	Outcome    Outcome `json:"outcome"`
	Err        error   `json:"-"`
	OutputPath string  `json:"outputPath,omitempty"`

	// Pages is the number of pages written to the package.
	Pages int `json:"pages"`

	// Skipped is the number of pages dropped after exhausting retries.
	Skipped int `json:"skipped"`
}

// Cancelled reports whether the run ended because it was cancelled.
func (c Completion) Cancelled() bool {
	return c.Outcome == OutcomeCancelled
}

// DownloadObserver receives progress and completion signals of a download.
// Signals for one download are delivered sequentially from the download's
// own goroutine; OnComplete is called exactly once and always last.
type DownloadObserver interface {
	OnProgress(p Progress)
	OnComplete(c Completion)
}

// ObserverFuncs adapts plain functions to DownloadObserver. Nil fields are skipped.
type ObserverFuncs struct {
	ProgressFn func(Progress)
	CompleteFn func(Completion)
}

func (o ObserverFuncs) OnProgress(p Progress) {
	if o.ProgressFn != nil {
		o.ProgressFn(p)
	}
}

func (o ObserverFuncs) OnComplete(c Completion) {
	if o.CompleteFn != nil {
		o.CompleteFn(c)
	}
}

// Packager turns a directory of fetched pages into a final artifact.
type Packager interface {
	// Name returns the packager's format identifier (e.g., "zip").
	Name() string

	// Save packages sourceDir into destDir and returns the artifact path.
	// The artifact name is derived from the chapter; sourceDir is not modified.
	// Returns EPACKAGE if assembly fails.
	Save(ctx context.Context, chapter *Chapter, sourceDir, destDir string) (string, error)
}

// PageProcessor transforms fetched page bytes before they are stored
// (e.g., image re-encoding).
type PageProcessor interface {
	Process(ctx context.Context, data []byte) ([]byte, error)
}
