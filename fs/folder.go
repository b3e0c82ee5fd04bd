package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/blacker-cz/mangascraper"
)

// Ensure FolderPackager implements mangascraper.Packager at compile time.
var _ mangascraper.Packager = (*FolderPackager)(nil)

// FolderPackager stores a chapter as a plain directory of page files.
// Files are copied to destDir/<name>.tmp and renamed to destDir/<name> once
// complete, replacing any earlier copy.
type FolderPackager struct{}

// NewFolderPackager creates a new FolderPackager.
func NewFolderPackager() *FolderPackager {
	return &FolderPackager{}
}

func (p *FolderPackager) Name() string {
	return "folder"
}

func (p *FolderPackager) Save(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (string, error) {
	files, err := ListFiles(sourceDir)
	if err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "read pages")
	}

	finalDir := filepath.Join(destDir, ChapterName(chapter))
	tempDir := finalDir + ".tmp"
	if err := os.RemoveAll(tempDir); err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "clear staging directory")
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "create staging directory")
	}

	if err := copyFiles(ctx, files, sourceDir, tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "copy pages")
	}

	if err := os.RemoveAll(finalDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "replace %s", finalDir)
	}
	if err := os.Rename(tempDir, finalDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "commit %s", finalDir)
	}
	return finalDir, nil
}

func copyFiles(ctx context.Context, names []string, srcDir, dstDir string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := CopyFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dst, creating or truncating dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
