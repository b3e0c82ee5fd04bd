package cache

import (
	"context"
	"fmt"

	"github.com/blacker-cz/mangascraper"
)

// Ensure service implements interface.
var _ mangascraper.Source = (*Source)(nil)

// Source wraps a mangascraper.Source and caches its listing and resolution
// results. Page bytes are never cached.
type Source struct {
	next mangascraper.Source

	collections *Cache[string, []*mangascraper.Collection]
	chapters    *Cache[string, []*mangascraper.Chapter]
	pages       *Cache[string, []mangascraper.Page]
}

// NewSource returns a caching decorator around next.
// Close must be called to stop the underlying caches.
func NewSource(next mangascraper.Source, opts ...Option) *Source {
	return &Source{
		next:        next,
		collections: New[string, []*mangascraper.Collection](opts...),
		chapters:    New[string, []*mangascraper.Chapter](opts...),
		pages:       New[string, []mangascraper.Page](opts...),
	}
}

func (s *Source) ID() string {
	return s.next.ID()
}

func (s *Source) ListCollections(ctx context.Context, filter mangascraper.CollectionFilter) ([]*mangascraper.Collection, error) {
	key := fmt.Sprintf("%s|%d|%d", filter.Query, filter.Offset, filter.Limit)
	collections, err := s.collections.GetOrLoad(key, func() ([]*mangascraper.Collection, error) {
		return s.next.ListCollections(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return append([]*mangascraper.Collection(nil), collections...), nil
}

// ListChapters caches per collection identity. Chapters carry their parent
// collection, so two collections sharing a URL are cached separately.
func (s *Source) ListChapters(ctx context.Context, collection *mangascraper.Collection) ([]*mangascraper.Chapter, error) {
	if collection == nil {
		return s.next.ListChapters(ctx, collection)
	}
	key := collection.ID + "|" + collection.Name + "|" + collection.URL
	chapters, err := s.chapters.GetOrLoad(key, func() ([]*mangascraper.Chapter, error) {
		return s.next.ListChapters(ctx, collection)
	})
	if err != nil {
		return nil, err
	}
	return append([]*mangascraper.Chapter(nil), chapters...), nil
}

func (s *Source) ResolvePages(ctx context.Context, chapter *mangascraper.Chapter) ([]mangascraper.Page, error) {
	if chapter == nil {
		return s.next.ResolvePages(ctx, chapter)
	}
	pages, err := s.pages.GetOrLoad(chapter.ID(), func() ([]mangascraper.Page, error) {
		return s.next.ResolvePages(ctx, chapter)
	})
	if err != nil {
		return nil, err
	}
	return append([]mangascraper.Page(nil), pages...), nil
}

func (s *Source) ResolveFetchLocator(ctx context.Context, page mangascraper.Page) (string, error) {
	return s.next.ResolveFetchLocator(ctx, page)
}

func (s *Source) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return s.next.Fetch(ctx, locator)
}

// Close stops the caches.
func (s *Source) Close() error {
	_ = s.collections.Close()
	_ = s.chapters.Close()
	return s.pages.Close()
}
