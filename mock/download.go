package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.Packager = (*Packager)(nil)

// Packager is a mock implementation of mangascraper.Packager.
type Packager struct {
	NameFn func() string
	SaveFn func(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error)
}

func (p *Packager) Name() string {
	if p.NameFn == nil {
		return "mock"
	}
	return p.NameFn()
}

func (p *Packager) Save(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
	return p.SaveFn(ctx, chapter, sourceDir, destDir)
}

var _ mangascraper.PageProcessor = (*PageProcessor)(nil)

// PageProcessor is a mock implementation of mangascraper.PageProcessor.
type PageProcessor struct {
	ProcessFn func(ctx context.Context, data []byte) ([]byte, error)
}

func (p *PageProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	return p.ProcessFn(ctx, data)
}
