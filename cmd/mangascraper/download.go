package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/archive"
	"github.com/blacker-cz/mangascraper/download"
	"github.com/blacker-cz/mangascraper/fs"
	"github.com/blacker-cz/mangascraper/gate"
	"github.com/blacker-cz/mangascraper/imaging"
	msslog "github.com/blacker-cz/mangascraper/slog"
)

const mib = 1 << 20

// Run executes the download command.
func (c *DownloadCmd) Run(deps *Dependencies) error {
	source, err := deps.Sources.Get(c.Source)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'mangascraper sources' to see available sources.\n", mangascraper.ErrorMessage(err))
		return err
	}

	// Compile filters before any network call.
	var filters []*regexp.Regexp
	for _, pattern := range c.Chapter {
		re, err := regexp.Compile(pattern)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: invalid chapter pattern %q: %v\n", pattern, err)
			return mangascraper.WrapError(mangascraper.EINVALID, err, "invalid chapter pattern %q", pattern)
		}
		filters = append(filters, re)
	}

	packager, err := newPackager(c.Format, deps.Logger)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	chapters, err := listChapters(deps, source, newCollection(c.Source, c.URL, c.Title))
	if err != nil {
		return err
	}
	chapters = selectChapters(chapters, filters)
	if len(chapters) == 0 {
		fmt.Fprintln(deps.Stderr, "error: no chapters to download. Use 'mangascraper chapters' to see available chapters.")
		return mangascraper.Errorf(mangascraper.ENOTFOUND, "no chapters to download")
	}

	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		fmt.Fprintf(deps.Stderr, "error: create %s: %v\n", c.Dest, err)
		return mangascraper.WrapError(mangascraper.EINTERNAL, err, "create destination")
	}
	if err := c.checkDiskSpace(deps); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	concurrency := max(c.Concurrency, 1)
	report := &reporter{deps: deps, seen: make(map[string]bool)}
	manager := download.NewManager(deps.Sources, gate.New(concurrency),
		download.WithRecords(deps.Records),
		download.WithDownloaderOptions(c.downloaderOptions(deps)...),
		download.WithManagerLogger(deps.Logger),
		download.WithTaskObserver(report.observe),
	)
	for _, ch := range chapters {
		if _, err := manager.Enqueue(ch, c.Dest, packager); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
			return err
		}
	}

	fmt.Fprintf(deps.Stdout, "Downloading %d chapters to %s (%s)\n", len(chapters), c.Dest, packager.Name())

	stop := context.AfterFunc(deps.Ctx, manager.CancelAll)
	defer stop()

	if err := manager.DownloadAll(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	completed, cancelled, failed := report.counts()
	fmt.Fprintf(deps.Stdout, "Done: %d completed, %d cancelled, %d failed\n", completed, cancelled, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(chapters))
	}
	if cancelled > 0 {
		return mangascraper.Errorf(mangascraper.ECANCELED, "download cancelled")
	}
	return nil
}

func (c *DownloadCmd) downloaderOptions(deps *Dependencies) []download.Option {
	var rps float64
	for _, cfg := range deps.Configs {
		if cfg.ID == c.Source {
			rps = cfg.RequestsPerSecond
			break
		}
	}

	opts := []download.Option{
		download.WithLogger(deps.Logger),
		download.WithLimiter(download.NewDomainLimiter(rps)),
	}

	var imgOpts []imaging.Option
	if c.JPEG {
		imgOpts = append(imgOpts, imaging.WithJPEG())
	}
	if c.MaxHeight > 0 {
		imgOpts = append(imgOpts, imaging.WithMaxHeight(c.MaxHeight))
	}
	if len(imgOpts) > 0 {
		opts = append(opts, download.WithProcessor(imaging.NewNormalizer(imgOpts...)))
	}
	return opts
}

func (c *DownloadCmd) checkDiskSpace(deps *Dependencies) error {
	if deps.DiskFree == nil || c.MinFree <= 0 {
		return nil
	}
	free, err := deps.DiskFree(c.Dest)
	if err != nil {
		deps.Logger.Warn("disk usage unavailable", "path", c.Dest, "err", err)
		return nil
	}
	if free < uint64(c.MinFree)*mib {
		return mangascraper.Errorf(mangascraper.EINVALID, "only %d MiB free in %s, need %d MiB", free/mib, c.Dest, c.MinFree)
	}
	return nil
}

// selectChapters keeps chapters whose name matches any filter.
// Without filters every chapter is kept.
func selectChapters(chapters []*mangascraper.Chapter, filters []*regexp.Regexp) []*mangascraper.Chapter {
	if len(filters) == 0 {
		return chapters
	}
	var selected []*mangascraper.Chapter
	for _, ch := range chapters {
		for _, re := range filters {
			if re.MatchString(ch.Name()) {
				selected = append(selected, ch)
				break
			}
		}
	}
	return selected
}

func newPackager(format string, logger *slog.Logger) (mangascraper.Packager, error) {
	var p mangascraper.Packager
	switch format {
	case "folder":
		p = fs.NewFolderPackager()
	case "zip":
		p = archive.NewZipPackager()
	case "cbz":
		p = archive.NewComicPackager()
	default:
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "unknown format %q", format)
	}
	return msslog.NewLoggingPackager(p, logger), nil
}

// reporter prints one line per finished task.
type reporter struct {
	deps *Dependencies

	mu        sync.Mutex
	seen      map[string]bool
	completed int
	cancelled int
	failed    int
}

func (r *reporter) observe(task download.Task) {
	if !task.State.Terminal() || task.Completion == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[task.ID] {
		return
	}
	r.seen[task.ID] = true

	c := task.Completion
	switch c.Outcome {
	case mangascraper.OutcomeCompleted:
		r.completed++
		line := fmt.Sprintf("Ok       %s -> %s (%d pages", task.Chapter, c.OutputPath, c.Pages)
		if c.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", c.Skipped)
		}
		fmt.Fprintln(r.deps.Stdout, line+")")
	case mangascraper.OutcomeCancelled:
		r.cancelled++
		fmt.Fprintf(r.deps.Stdout, "Warning  %s: cancelled\n", task.Chapter)
	default:
		r.failed++
		fmt.Fprintf(r.deps.Stderr, "Error    %s: %s\n", task.Chapter, mangascraper.ErrorMessage(c.Err))
	}
}

func (r *reporter) counts() (completed, cancelled, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed, r.cancelled, r.failed
}
