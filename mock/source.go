package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.Source = (*Source)(nil)

// Source is a mock implementation of mangascraper.Source.
// ID returns IDValue when IDFn is nil.
type Source struct {
	IDValue string

	IDFn                  func() string
	ListCollectionsFn     func(ctx context.Context, filter mangascraper.CollectionFilter) ([]*mangascraper.Collection, error)
	ListChaptersFn        func(ctx context.Context, collection *mangascraper.Collection) ([]*mangascraper.Chapter, error)
	ResolvePagesFn        func(ctx context.Context, chapter *mangascraper.Chapter) ([]mangascraper.Page, error)
	ResolveFetchLocatorFn func(ctx context.Context, page mangascraper.Page) (string, error)
	FetchFn               func(ctx context.Context, locator string) ([]byte, error)
}

func (s *Source) ID() string {
	if s.IDFn != nil {
		return s.IDFn()
	}
	return s.IDValue
}

func (s *Source) ListCollections(ctx context.Context, filter mangascraper.CollectionFilter) ([]*mangascraper.Collection, error) {
	return s.ListCollectionsFn(ctx, filter)
}

func (s *Source) ListChapters(ctx context.Context, collection *mangascraper.Collection) ([]*mangascraper.Chapter, error) {
	return s.ListChaptersFn(ctx, collection)
}

func (s *Source) ResolvePages(ctx context.Context, chapter *mangascraper.Chapter) ([]mangascraper.Page, error) {
	return s.ResolvePagesFn(ctx, chapter)
}

func (s *Source) ResolveFetchLocator(ctx context.Context, page mangascraper.Page) (string, error) {
	return s.ResolveFetchLocatorFn(ctx, page)
}

func (s *Source) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return s.FetchFn(ctx, locator)
}
