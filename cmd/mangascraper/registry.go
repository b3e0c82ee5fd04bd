package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/cache"
	"github.com/blacker-cz/mangascraper/goquery"
	"github.com/blacker-cz/mangascraper/htmltomarkdown"
	mshttp "github.com/blacker-cz/mangascraper/http"
	"github.com/blacker-cz/mangascraper/readability"
	"github.com/blacker-cz/mangascraper/rod"
	msslog "github.com/blacker-cz/mangascraper/slog"
	"github.com/blacker-cz/mangascraper/trafilatura"
)

// sourceSet is the registry built from the sources file together with the
// resources its sources hold.
type sourceSet struct {
	Registry   *mangascraper.SourceRegistry
	Describers map[string]Describer

	closers []io.Closer
}

// Close releases caches and the browser.
func (s *sourceSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// buildSources creates one generic source per config. Listings are cached
// and every source call is logged. A single browser is shared by all
// sources that render JavaScript.
func buildSources(configs []goquery.Config, logger *slog.Logger) (*sourceSet, error) {
	set := &sourceSet{
		Registry:   mangascraper.NewSourceRegistry(),
		Describers: make(map[string]Describer),
	}

	var browser *rod.Fetcher
	for _, cfg := range configs {
		var httpOpts []mshttp.Option
		if cfg.UserAgent != "" {
			httpOpts = append(httpOpts, mshttp.WithUserAgent(cfg.UserAgent))
		}
		if cfg.Referer != "" {
			httpOpts = append(httpOpts, mshttp.WithReferer(cfg.Referer))
		}
		resources := mshttp.NewFetcher(httpOpts...)

		var pages mangascraper.Fetcher = resources
		if cfg.RenderJS {
			if browser == nil {
				var err error
				browser, err = rod.NewFetcher(rod.WithLogger(logger.With("component", "browser")))
				if err != nil {
					_ = set.Close()
					return nil, mangascraper.WrapError(mangascraper.EFETCH, err, "failed to start browser (Chrome or Chromium must be installed)")
				}
				set.closers = append(set.closers, browser)
			}
			pages = browser
		}

		src, err := goquery.NewSource(cfg,
			msslog.NewLoggingFetcher(pages, logger),
			resources,
			goquery.WithSitemap(msslog.NewLoggingSitemapService(mshttp.NewSitemapService(resources), logger)),
			goquery.WithExtractors(
				trafilatura.NewExtractor(),
				readability.NewExtractor(readability.WithBaseURL(cfg.BaseURL)),
			),
			goquery.WithConverter(htmltomarkdown.NewConverter(htmltomarkdown.WithDomain(cfg.BaseURL))),
			goquery.WithLogger(logger.With("source", cfg.ID)),
		)
		if err != nil {
			_ = set.Close()
			return nil, err
		}

		cached := cache.NewSource(src, cache.WithLogger(logger))
		set.closers = append(set.closers, cached)
		set.Registry.Register(msslog.NewLoggingSource(cached, logger))
		set.Describers[cfg.ID] = src
	}
	return set, nil
}
