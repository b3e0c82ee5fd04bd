// Package trafilatura extracts the readable body of text chapters with
// go-trafilatura.
package trafilatura

import (
	"bytes"
	"strings"

	"github.com/blacker-cz/mangascraper"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var _ mangascraper.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract chapter text from reader pages.
type Extractor struct {
	images bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithImages keeps inline illustrations in the extracted content.
func WithImages() Option {
	return func(e *Extractor) {
		e.images = true
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
// ContentHTML is empty when no main content could be identified.
func (e *Extractor) Extract(rawHTML string) (*mangascraper.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "empty HTML input")
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback: true,
		IncludeImages:  e.images,
	})
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.ERESOLVE, err, "extract chapter text")
	}

	var content string
	if result.ContentNode != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, result.ContentNode); err != nil {
			return nil, err
		}
		content = buf.String()
	}

	return &mangascraper.ExtractResult{
		Title:       result.Metadata.Title,
		ContentHTML: content,
	}, nil
}
