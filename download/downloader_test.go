package download_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/download"
	"github.com/blacker-cz/mangascraper/fs"
	"github.com/blacker-cz/mangascraper/gate"
	"github.com/blacker-cz/mangascraper/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceID = "test-source"

var noDelay = download.WithRetryDelays([]time.Duration{0, 0})

// recorder collects observer signals.
type recorder struct {
	mu          sync.Mutex
	progress    []mangascraper.Progress
	completions []mangascraper.Completion
}

func (r *recorder) OnProgress(p mangascraper.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnComplete(c mangascraper.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, c)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []string
	for _, p := range r.progress {
		msgs = append(msgs, p.Message)
	}
	return msgs
}

// safeBuffer is a bytes.Buffer usable as a concurrent log sink.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testChapter() *mangascraper.Chapter {
	coll := &mangascraper.Collection{ID: "col", SourceID: sourceID, Name: "Series"}
	return mangascraper.NewChapter(sourceID, coll, "ch-1", "Chapter 1", "https://example.com/ch-1")
}

// pagedSource resolves n pages whose bytes are "page-<ordinal>".
func pagedSource(n int) *mock.Source {
	return &mock.Source{
		IDValue: sourceID,
		ResolvePagesFn: func(_ context.Context, _ *mangascraper.Chapter) ([]mangascraper.Page, error) {
			pages := make([]mangascraper.Page, n)
			for i := range pages {
				pages[i] = mangascraper.Page{Ordinal: i + 1, Locator: fmt.Sprintf("https://img.example.com/%d", i+1)}
			}
			return pages, nil
		},
		ResolveFetchLocatorFn: func(_ context.Context, page mangascraper.Page) (string, error) {
			return page.Locator, nil
		},
		FetchFn: func(_ context.Context, locator string) ([]byte, error) {
			return []byte("page-" + locator[strings.LastIndex(locator, "/")+1:]), nil
		},
	}
}

// capturePackager records the files it was asked to package.
func capturePackager(files *[]string) *mock.Packager {
	return &mock.Packager{
		SaveFn: func(_ context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
			names, err := fs.ListFiles(sourceDir)
			if err != nil {
				return "", err
			}
			*files = names
			return filepath.Join(destDir, fs.ChapterName(chapter)), nil
		},
	}
}

func waitCompletion(t *testing.T, d *download.Downloader) mangascraper.Completion {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := d.Wait(ctx)
	require.NoError(t, err)
	return c
}

// requireNoWorkspace asserts no page workspace is left in dir.
func requireNoWorkspace(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".pages-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "workspace should be removed")
}

func TestDownloader_Start_Validation(t *testing.T) {
	t.Parallel()

	d := download.NewDownloader(pagedSource(1))
	pkg := &mock.Packager{}
	ctx := context.Background()
	dest := t.TempDir()

	foreign := mangascraper.NewChapter("other", nil, "x", "X", "https://example.com/x")

	tests := []struct {
		name     string
		chapter  *mangascraper.Chapter
		dest     string
		packager mangascraper.Packager
	}{
		{"nil chapter", nil, dest, pkg},
		{"invalid chapter", mangascraper.NewChapter(sourceID, nil, "", "X", "u"), dest, pkg},
		{"chapter of another source", foreign, dest, pkg},
		{"nil packager", testChapter(), dest, nil},
		{"empty destination", testChapter(), "", pkg},
	}
	for _, tt := range tests {
		err := d.Start(ctx, tt.chapter, tt.dest, tt.packager, nil)
		assert.Equal(t, mangascraper.EINVALID, mangascraper.ErrorCode(err), tt.name)
	}
	assert.Equal(t, download.StateIdle, d.State())
}

// A chapter with 5 pages where page 3 fails every attempt still completes
// with the other 4 pages packaged.
func TestDownloader_SkipsFailingPage(t *testing.T) {
	t.Parallel()

	src := pagedSource(5)
	var mu sync.Mutex
	attempts := map[string]int{}
	src.FetchFn = func(_ context.Context, locator string) ([]byte, error) {
		mu.Lock()
		attempts[locator]++
		mu.Unlock()
		if strings.HasSuffix(locator, "/3") {
			return nil, errors.New("connection reset")
		}
		return []byte("page"), nil
	}

	logs := &safeBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	d := download.NewDownloader(src, noDelay, download.WithLogger(logger))
	var packaged []string
	rec := &recorder{}
	dest := t.TempDir()

	require.NoError(t, d.Start(context.Background(), testChapter(), dest, capturePackager(&packaged), rec))
	c := waitCompletion(t, d)

	assert.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
	assert.NoError(t, c.Err)
	assert.Equal(t, 4, c.Pages)
	assert.Equal(t, 1, c.Skipped)
	assert.Equal(t, []string{"0001.md", "0002.md", "0004.md", "0005.md"}, packaged)
	assert.Equal(t, 3, attempts["https://img.example.com/3"])
	assert.Equal(t, 1, attempts["https://img.example.com/1"])
	assert.Equal(t, download.StateCompleted, d.State())
	requireNoWorkspace(t, dest)

	assert.Equal(t, 1, strings.Count(logs.String(), "page skipped"))
	assert.Contains(t, logs.String(), "ordinal=3")

	msgs := rec.messages()
	assert.Equal(t, "Resolved 5 pages", msgs[0])
	for i := 1; i <= 5; i++ {
		assert.Contains(t, msgs, fmt.Sprintf("Downloading page %d of 5", i))
		assert.Contains(t, msgs, fmt.Sprintf("Downloaded page %d of 5", i))
	}
	assert.Contains(t, msgs, "Packaging mock")
	assert.Equal(t, 100, rec.progress[len(rec.progress)-1].Percent)
	require.Len(t, rec.completions, 1)
}

func TestDownloader_ProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	d := download.NewDownloader(pagedSource(3), noDelay)
	var packaged []string
	rec := &recorder{}

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), rec))
	waitCompletion(t, d)

	// 1 resolution + 3 pages + 1 packaging = 5 tasks.
	var percents []int
	for _, p := range rec.progress {
		percents = append(percents, p.Percent)
	}
	assert.Equal(t, []int{20, 20, 40, 40, 60, 60, 80, 80, 100}, percents)
}

func TestDownloader_AllPagesFail(t *testing.T) {
	t.Parallel()

	src := pagedSource(2)
	src.FetchFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("gone") }
	d := download.NewDownloader(src, noDelay)
	var packaged []string
	called := false
	pkg := capturePackager(&packaged)
	save := pkg.SaveFn
	pkg.SaveFn = func(ctx context.Context, ch *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
		called = true
		return save(ctx, ch, sourceDir, destDir)
	}

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), pkg, nil))
	c := waitCompletion(t, d)

	// Best-effort: the packager still receives the empty directory.
	assert.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
	assert.True(t, called)
	assert.Empty(t, packaged)
	assert.Equal(t, 2, c.Skipped)
}

// Zero resolved pages is not a failure: the packager runs over an empty
// directory and the run completes.
func TestDownloader_ZeroPagesIsPermissive(t *testing.T) {
	t.Parallel()

	d := download.NewDownloader(pagedSource(0), noDelay)
	var packaged []string
	rec := &recorder{}

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), rec))
	c := waitCompletion(t, d)

	assert.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
	assert.Equal(t, 0, c.Pages)
	assert.Empty(t, packaged)
	assert.Equal(t, "Resolved 0 pages", rec.messages()[0])
}

func TestDownloader_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("before any page completes", func(t *testing.T) {
		t.Parallel()

		src := pagedSource(5)
		var d *download.Downloader
		src.FetchFn = func(ctx context.Context, _ string) ([]byte, error) {
			d.Cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		d = download.NewDownloader(src, noDelay)
		packagerCalled := false
		pkg := &mock.Packager{SaveFn: func(context.Context, *mangascraper.Chapter, string, string) (string, error) {
			packagerCalled = true
			return "", nil
		}}
		rec := &recorder{}
		dest := t.TempDir()

		require.NoError(t, d.Start(context.Background(), testChapter(), dest, pkg, rec))
		c := waitCompletion(t, d)

		assert.Equal(t, mangascraper.OutcomeCancelled, c.Outcome)
		assert.True(t, c.Cancelled())
		assert.NoError(t, c.Err)
		assert.Equal(t, 0, c.Pages)
		assert.False(t, packagerCalled)
		assert.Equal(t, download.StateCancelled, d.State())
		requireNoWorkspace(t, dest)
		require.Len(t, rec.completions, 1)
	})

	t.Run("after resolution", func(t *testing.T) {
		t.Parallel()

		src := pagedSource(3)
		var d *download.Downloader
		resolve := src.ResolvePagesFn
		fetched := false
		src.ResolvePagesFn = func(ctx context.Context, ch *mangascraper.Chapter) ([]mangascraper.Page, error) {
			d.Cancel()
			return resolve(ctx, ch)
		}
		src.FetchFn = func(context.Context, string) ([]byte, error) {
			fetched = true
			return nil, nil
		}
		d = download.NewDownloader(src, noDelay)

		require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), &mock.Packager{}, nil))
		c := waitCompletion(t, d)

		assert.Equal(t, mangascraper.OutcomeCancelled, c.Outcome)
		assert.False(t, fetched)
	})

	t.Run("parent context cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := download.NewDownloader(pagedSource(1), noDelay)

		require.NoError(t, d.Start(ctx, testChapter(), t.TempDir(), &mock.Packager{}, nil))
		c := waitCompletion(t, d)

		assert.Equal(t, mangascraper.OutcomeCancelled, c.Outcome)
	})

	t.Run("idle cancel is a no-op", func(t *testing.T) {
		t.Parallel()

		d := download.NewDownloader(pagedSource(1))
		d.Cancel()

		assert.Equal(t, download.StateIdle, d.State())
		_, ok := d.Completion()
		assert.False(t, ok)
	})
}

func TestDownloader_StartWhileRunning(t *testing.T) {
	t.Parallel()

	src := pagedSource(1)
	src.FetchFn = func(ctx context.Context, _ string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := download.NewDownloader(src, noDelay)
	dest := t.TempDir()

	require.NoError(t, d.Start(context.Background(), testChapter(), dest, &mock.Packager{}, nil))
	err := d.Start(context.Background(), testChapter(), dest, &mock.Packager{}, nil)

	assert.Equal(t, mangascraper.EINVALIDOP, mangascraper.ErrorCode(err))

	d.Cancel()
	c := waitCompletion(t, d)
	assert.Equal(t, mangascraper.OutcomeCancelled, c.Outcome)

	// The downloader is reusable after a terminal state.
	var packaged []string
	src.FetchFn = func(context.Context, string) ([]byte, error) { return []byte("ok"), nil }
	require.NoError(t, d.Start(context.Background(), testChapter(), dest, capturePackager(&packaged), nil))
	c = waitCompletion(t, d)
	assert.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
}

func TestDownloader_ResolutionFailure(t *testing.T) {
	t.Parallel()

	src := pagedSource(1)
	src.ResolvePagesFn = func(context.Context, *mangascraper.Chapter) ([]mangascraper.Page, error) {
		return nil, errors.New("reader element missing")
	}
	d := download.NewDownloader(src, noDelay)
	rec := &recorder{}

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), &mock.Packager{}, rec))
	c := waitCompletion(t, d)

	assert.Equal(t, mangascraper.OutcomeFailed, c.Outcome)
	assert.Equal(t, mangascraper.ERESOLVE, mangascraper.ErrorCode(c.Err))
	assert.Equal(t, download.StateFailed, d.State())
	require.Len(t, rec.completions, 1)
}

func TestDownloader_PackagingFailure(t *testing.T) {
	t.Parallel()

	d := download.NewDownloader(pagedSource(2), noDelay)
	pkg := &mock.Packager{SaveFn: func(context.Context, *mangascraper.Chapter, string, string) (string, error) {
		return "", errors.New("disk full")
	}}
	dest := t.TempDir()

	require.NoError(t, d.Start(context.Background(), testChapter(), dest, pkg, nil))
	c := waitCompletion(t, d)

	assert.Equal(t, mangascraper.OutcomeFailed, c.Outcome)
	assert.Equal(t, mangascraper.EPACKAGE, mangascraper.ErrorCode(c.Err))
	requireNoWorkspace(t, dest)
}

func TestDownloader_CompletionAfterPermitRelease(t *testing.T) {
	t.Parallel()

	g := gate.New(1)
	d := download.NewDownloader(pagedSource(1), noDelay, download.WithGate(g))
	outstanding := make(chan int, 1)
	observer := mangascraper.ObserverFuncs{CompleteFn: func(mangascraper.Completion) {
		outstanding <- g.Outstanding()
	}}
	var packaged []string

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), observer))
	waitCompletion(t, d)

	assert.Equal(t, 0, <-outstanding)
}

func TestDownloader_WaitsForGate(t *testing.T) {
	t.Parallel()

	g := gate.New(1)
	require.NoError(t, g.Acquire(context.Background()))

	resolved := make(chan struct{}, 1)
	src := pagedSource(1)
	resolve := src.ResolvePagesFn
	src.ResolvePagesFn = func(ctx context.Context, ch *mangascraper.Chapter) ([]mangascraper.Page, error) {
		resolved <- struct{}{}
		return resolve(ctx, ch)
	}
	d := download.NewDownloader(src, noDelay, download.WithGate(g))
	var packaged []string

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), nil))

	select {
	case <-resolved:
		t.Fatal("resolved pages without a gate permit")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, g.Release(1))
	c := waitCompletion(t, d)
	assert.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
}

func TestDownloader_DuplicateOrdinals(t *testing.T) {
	t.Parallel()

	src := pagedSource(0)
	src.ResolvePagesFn = func(context.Context, *mangascraper.Chapter) ([]mangascraper.Page, error) {
		return []mangascraper.Page{
			{Ordinal: 1, Locator: "https://img.example.com/a"},
			{Ordinal: 1, Locator: "https://img.example.com/b"},
			{Ordinal: 2, Locator: "https://img.example.com/c"},
		}, nil
	}
	d := download.NewDownloader(src, noDelay)
	var packaged []string

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), nil))
	c := waitCompletion(t, d)

	assert.Equal(t, 3, c.Pages)
	assert.Len(t, packaged, 3)
}

func TestDownloader_Processor(t *testing.T) {
	t.Parallel()

	processor := &mock.PageProcessor{ProcessFn: func(_ context.Context, data []byte) ([]byte, error) {
		return bytes.ToUpper(data), nil
	}}
	d := download.NewDownloader(pagedSource(1), noDelay, download.WithProcessor(processor))
	var content []byte
	pkg := &mock.Packager{SaveFn: func(_ context.Context, _ *mangascraper.Chapter, sourceDir, _ string) (string, error) {
		var err error
		content, err = os.ReadFile(filepath.Join(sourceDir, "0001.md"))
		return sourceDir, err
	}}

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), pkg, nil))
	c := waitCompletion(t, d)

	require.Equal(t, mangascraper.OutcomeCompleted, c.Outcome)
	assert.Equal(t, "PAGE-1", string(content))
}

func TestDownloader_Limiter(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var domains []string
	limiter := &mock.DomainLimiter{WaitFn: func(_ context.Context, domain string) error {
		mu.Lock()
		domains = append(domains, domain)
		mu.Unlock()
		return nil
	}}
	d := download.NewDownloader(pagedSource(2), noDelay, download.WithLimiter(limiter))
	var packaged []string

	require.NoError(t, d.Start(context.Background(), testChapter(), t.TempDir(), capturePackager(&packaged), nil))
	waitCompletion(t, d)

	assert.Equal(t, []string{"img.example.com", "img.example.com"}, domains)
}
