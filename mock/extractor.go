package mock

import "github.com/blacker-cz/mangascraper"

var _ mangascraper.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of mangascraper.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*mangascraper.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*mangascraper.ExtractResult, error) {
	return e.ExtractFn(html)
}
