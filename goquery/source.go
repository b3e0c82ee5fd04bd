// Package goquery implements mangascraper.Source for sites described by a
// Config of CSS selectors.
package goquery

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/bloom"
	"github.com/cespare/xxhash/v2"
)

// DefaultMaxListingPages caps how many pages of one paginated listing are walked.
const DefaultMaxListingPages = 100

var _ mangascraper.Source = (*Source)(nil)

// Source is a selector-driven mangascraper.Source.
type Source struct {
	cfg               Config
	collectionPattern *regexp.Regexp

	fetcher    mangascraper.Fetcher
	resources  mangascraper.ResourceFetcher
	sitemap    mangascraper.SitemapService
	extractors []mangascraper.Extractor
	converter  mangascraper.Converter
	maxPages   int
	logger     *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithSitemap enables listing collections without a query through the
// site's sitemap filtered by Config.CollectionPattern.
func WithSitemap(svc mangascraper.SitemapService) Option {
	return func(s *Source) {
		s.sitemap = svc
	}
}

// WithExtractors sets the text extractors tried in order for text sources.
func WithExtractors(extractors ...mangascraper.Extractor) Option {
	return func(s *Source) {
		s.extractors = extractors
	}
}

// WithConverter converts extracted text and descriptions to Markdown.
// Without a converter text chapters are stored as HTML.
func WithConverter(c mangascraper.Converter) Option {
	return func(s *Source) {
		s.converter = c
	}
}

// WithMaxListingPages caps how many pages of a paginated listing are walked.
func WithMaxListingPages(n int) Option {
	return func(s *Source) {
		s.maxPages = n
	}
}

// WithLogger sets the logger for the source.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a Source for cfg. fetcher retrieves HTML documents and
// resources retrieves page bytes.
// Returns EINVALID if the config is invalid.
func NewSource(cfg Config, fetcher mangascraper.Fetcher, resources mangascraper.ResourceFetcher, opts ...Option) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || resources == nil {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "source %q: fetchers required", cfg.ID)
	}

	s := &Source{
		cfg:       cfg,
		fetcher:   fetcher,
		resources: resources,
		maxPages:  DefaultMaxListingPages,
	}
	if cfg.CollectionPattern != "" {
		s.collectionPattern = regexp.MustCompile(cfg.CollectionPattern)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxPages < 1 {
		s.maxPages = 1
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// ID returns the configured source ID.
func (s *Source) ID() string {
	return s.cfg.ID
}

// Config returns the source's configuration.
func (s *Source) Config() Config {
	return s.cfg
}

// ListCollections searches the site when filter.Query is set, otherwise
// lists collections from the sitemap.
// Returns EINVALID if the source supports neither.
func (s *Source) ListCollections(ctx context.Context, filter mangascraper.CollectionFilter) ([]*mangascraper.Collection, error) {
	var collections []*mangascraper.Collection
	var err error

	switch {
	case filter.Query != "" && s.cfg.SearchURL != "":
		collections, err = s.search(ctx, filter.Query)
	case filter.Query == "" && s.sitemap != nil && s.collectionPattern != nil:
		collections, err = s.fromSitemap(ctx)
	case filter.Query != "":
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "source %q does not support search", s.cfg.ID)
	default:
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "source %q requires a search query", s.cfg.ID)
	}
	if err != nil {
		return nil, err
	}

	return filter.Apply(collections), nil
}

func (s *Source) search(ctx context.Context, query string) ([]*mangascraper.Collection, error) {
	start := strings.ReplaceAll(s.cfg.SearchURL, QueryPlaceholder, url.QueryEscape(query))

	var collections []*mangascraper.Collection
	seen := make(map[string]bool)
	err := s.walk(ctx, start, s.cfg.CollectionNextSelector, func(doc *goquery.Document, base *url.URL) {
		for _, l := range selectLinks(doc, base, s.cfg.CollectionSelector, "href") {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			collections = append(collections, s.collection(l.URL, l.Text))
		}
	})
	if err != nil {
		return nil, err
	}
	return collections, nil
}

func (s *Source) fromSitemap(ctx context.Context) ([]*mangascraper.Collection, error) {
	urls, err := s.sitemap.DiscoverURLs(ctx, s.cfg.BaseURL, &mangascraper.URLFilter{
		Include: []*regexp.Regexp{s.collectionPattern},
	})
	if err != nil {
		return nil, err
	}

	collections := make([]*mangascraper.Collection, 0, len(urls))
	for _, u := range urls {
		collections = append(collections, s.collection(u, NameFromURL(u)))
	}
	return collections, nil
}

func (s *Source) collection(u, name string) *mangascraper.Collection {
	return &mangascraper.Collection{
		ID:       HashID(u),
		SourceID: s.cfg.ID,
		Name:     name,
		URL:      u,
	}
}

// ListChapters returns the chapters linked from the collection page in
// reading order.
func (s *Source) ListChapters(ctx context.Context, collection *mangascraper.Collection) ([]*mangascraper.Chapter, error) {
	if collection == nil {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "collection required")
	}
	if err := collection.Validate(); err != nil {
		return nil, err
	}

	var links []link
	seen := make(map[string]bool)
	err := s.walk(ctx, collection.URL, s.cfg.ChapterNextSelector, func(doc *goquery.Document, base *url.URL) {
		for _, l := range selectLinks(doc, base, s.cfg.ChapterSelector, "href") {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			links = append(links, l)
		}
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.ChapterOrder == OrderDescending {
		slices.Reverse(links)
	}

	chapters := make([]*mangascraper.Chapter, 0, len(links))
	for i, l := range links {
		name := l.Text
		if name == "" {
			name = "Chapter " + strconv.Itoa(i+1)
		}
		chapters = append(chapters, mangascraper.NewChapter(s.cfg.ID, collection, HashID(l.URL), name, l.URL))
	}
	return chapters, nil
}

// Describe returns the collection's description, as Markdown when a
// converter is configured. Returns "" if no description selector is set.
func (s *Source) Describe(ctx context.Context, collection *mangascraper.Collection) (string, error) {
	if s.cfg.DescriptionSelector == "" {
		return "", nil
	}

	doc, _, err := s.document(ctx, collection.URL)
	if err != nil {
		return "", err
	}

	sel := doc.Find(s.cfg.DescriptionSelector).First()
	if sel.Length() == 0 {
		return "", nil
	}
	if s.converter == nil {
		return strings.TrimSpace(sel.Text()), nil
	}

	html, err := sel.Html()
	if err != nil {
		return "", err
	}
	md, err := s.converter.Convert(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// ResolvePages returns the page set of a chapter. A text chapter is a
// single page located at the chapter URL. A reader page without matching
// images yields an empty page set, which downloads as an empty chapter.
func (s *Source) ResolvePages(ctx context.Context, chapter *mangascraper.Chapter) ([]mangascraper.Page, error) {
	if chapter == nil {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "chapter required")
	}
	if s.cfg.Text {
		return []mangascraper.Page{{Ordinal: 1, Locator: chapter.URL()}}, nil
	}

	var pages []mangascraper.Page
	seen := make(map[string]bool)
	err := s.walk(ctx, chapter.URL(), s.cfg.PageNextSelector, func(doc *goquery.Document, base *url.URL) {
		for _, l := range selectLinks(doc, base, s.cfg.PageSelector, s.cfg.PageAttr) {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			pages = append(pages, mangascraper.Page{Ordinal: len(pages) + 1, Locator: l.URL})
		}
	})
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.ERESOLVE, err, "resolve pages of %s", chapter.URL())
	}
	if pages == nil {
		pages = []mangascraper.Page{}
	}
	return pages, nil
}

// ResolveFetchLocator returns the image URL of a page. Pages are image URLs
// already unless Config.ImageSelector is set.
func (s *Source) ResolveFetchLocator(ctx context.Context, page mangascraper.Page) (string, error) {
	if s.cfg.Text || s.cfg.ImageSelector == "" {
		return page.Locator, nil
	}

	doc, base, err := s.document(ctx, page.Locator)
	if err != nil {
		return "", err
	}
	links := selectLinks(doc, base, s.cfg.ImageSelector, s.cfg.ImageAttr)
	if len(links) == 0 {
		return "", mangascraper.Errorf(mangascraper.ERESOLVE, "no image found at %s", page.Locator)
	}
	return links[0].URL, nil
}

// Fetch retrieves page bytes. For text sources the locator is a chapter
// page and the result is its extracted text.
func (s *Source) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if s.cfg.Text {
		return s.fetchText(ctx, locator)
	}
	return s.resources.FetchBytes(ctx, locator)
}

func (s *Source) fetchText(ctx context.Context, locator string) ([]byte, error) {
	html, err := s.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}

	result, err := s.extract(html)
	if err != nil {
		return nil, err
	}
	if s.converter == nil {
		return []byte(result.ContentHTML), nil
	}

	md, err := s.converter.Convert(result.ContentHTML)
	if err != nil {
		return nil, err
	}
	if result.Title != "" {
		md = "# " + result.Title + "\n\n" + md
	}
	return []byte(md), nil
}

// extract returns the first extractor result with content.
func (s *Source) extract(html string) (*mangascraper.ExtractResult, error) {
	if len(s.extractors) == 0 {
		return &mangascraper.ExtractResult{ContentHTML: html}, nil
	}

	var lastErr error
	for _, e := range s.extractors {
		result, err := e.Extract(html)
		if err != nil {
			lastErr = err
			s.logger.Debug("extractor failed", "err", err)
			continue
		}
		if strings.TrimSpace(result.ContentHTML) != "" {
			return result, nil
		}
	}
	if lastErr != nil {
		return nil, mangascraper.WrapError(mangascraper.ERESOLVE, lastErr, "no chapter text found")
	}
	return nil, mangascraper.Errorf(mangascraper.ERESOLVE, "no chapter text found")
}

// walk fetches start and follows next links, calling visit for every page,
// until there is no next link, a page repeats or the page cap is reached.
func (s *Source) walk(ctx context.Context, start, next string, visit func(doc *goquery.Document, base *url.URL)) error {
	seen := bloom.NewFilter(uint(s.maxPages), 1e-6)

	u := start
	visited := 0
	for u != "" && visited < s.maxPages {
		if !seen.Visit(u) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, base, err := s.document(ctx, u)
		if err != nil {
			return err
		}
		visited++
		visit(doc, base)

		u = nextURL(doc, base, next)
	}

	if u != "" {
		s.logger.Warn("listing truncated", "start", start, "pages", visited)
	}
	return nil
}

func (s *Source) document(ctx context.Context, u string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(u)
	if err != nil {
		return nil, nil, mangascraper.Errorf(mangascraper.EINVALID, "invalid URL %q", u)
	}
	html, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	doc, err := parse(html)
	if err != nil {
		return nil, nil, err
	}
	return doc, base, nil
}

// HashID returns a stable identifier for a locator.
func HashID(locator string) string {
	return strconv.FormatUint(xxhash.Sum64String(locator), 16)
}

// NameFromURL derives a display name from the last path segment of u.
func NameFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	seg := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if seg == "." || seg == "/" || seg == "" {
		return parsed.Host
	}
	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	return strings.Join(strings.Fields(seg), " ")
}
