package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.Source = (*LoggingSource)(nil)

// LoggingSource wraps a Source with logging.
// Page fetches are logged at debug level; they are frequent.
type LoggingSource struct {
	next   mangascraper.Source
	logger *slog.Logger
}

// NewLoggingSource creates a new LoggingSource.
func NewLoggingSource(next mangascraper.Source, logger *slog.Logger) *LoggingSource {
	return &LoggingSource{next: next, logger: logger.With("source", next.ID())}
}

func (s *LoggingSource) ID() string {
	return s.next.ID()
}

func (s *LoggingSource) ListCollections(ctx context.Context, filter mangascraper.CollectionFilter) (collections []*mangascraper.Collection, err error) {
	defer func(begin time.Time) {
		s.logger.Info("list collections",
			"query", filter.Query,
			"count", len(collections),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ListCollections(ctx, filter)
}

func (s *LoggingSource) ListChapters(ctx context.Context, collection *mangascraper.Collection) (chapters []*mangascraper.Chapter, err error) {
	defer func(begin time.Time) {
		s.logger.Info("list chapters",
			"collection", collection.URL,
			"count", len(chapters),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ListChapters(ctx, collection)
}

func (s *LoggingSource) ResolvePages(ctx context.Context, chapter *mangascraper.Chapter) (pages []mangascraper.Page, err error) {
	defer func(begin time.Time) {
		s.logger.Info("resolve pages",
			"chapter", chapter.URL(),
			"count", len(pages),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ResolvePages(ctx, chapter)
}

func (s *LoggingSource) ResolveFetchLocator(ctx context.Context, page mangascraper.Page) (locator string, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("resolve locator",
			"page", page.Locator,
			"locator", locator,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ResolveFetchLocator(ctx, page)
}

func (s *LoggingSource) Fetch(ctx context.Context, locator string) (data []byte, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("fetch",
			"locator", locator,
			"bytes", len(data),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Fetch(ctx, locator)
}
