// Package readability provides a fallback chapter text extractor built on
// go-readability, used when trafilatura finds no main content.
package readability

import (
	"net/url"
	"strings"

	"github.com/blacker-cz/mangascraper"
	"github.com/go-shiori/go-readability"
)

var _ mangascraper.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract chapter text from reader pages.
type Extractor struct {
	pageURL *url.URL
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBaseURL resolves relative links and images against u.
// Unparseable values are ignored.
func WithBaseURL(u string) Option {
	return func(e *Extractor) {
		if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
			e.pageURL = parsed
		}
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract processes a reader page and returns the chapter content.
func (e *Extractor) Extract(rawHTML string) (*mangascraper.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), e.pageURL)
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.ERESOLVE, err, "extract chapter text")
	}

	return &mangascraper.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
	}, nil
}
