package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of mangascraper.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, filter *mangascraper.URLFilter) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *mangascraper.URLFilter) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, filter)
}
