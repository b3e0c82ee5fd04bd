package archive

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

// Ensure ZipPackager implements mangascraper.Packager at compile time.
var _ mangascraper.Packager = (*ZipPackager)(nil)

// ZipPackager stores a chapter as destDir/<name>.zip.
type ZipPackager struct{}

// NewZipPackager creates a new ZipPackager.
func NewZipPackager() *ZipPackager {
	return &ZipPackager{}
}

func (p *ZipPackager) Name() string {
	return "zip"
}

func (p *ZipPackager) Save(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
	return writeArchive(ctx, chapter, sourceDir, destDir, ".zip")
}
