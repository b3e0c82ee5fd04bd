package mock

import "github.com/blacker-cz/mangascraper"

var _ mangascraper.Converter = (*Converter)(nil)

// Converter is a mock implementation of mangascraper.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
