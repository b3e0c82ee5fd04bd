// Package archive packages downloaded chapters as single-file archives:
// plain zip files and comic book archives (cbz) carrying ComicInfo.xml.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/fs"
)

// extraFile is a generated archive member that has no source file.
type extraFile struct {
	name string
	data []byte
}

// writeArchive zips the files of sourceDir plus extras into
// destDir/<chapter name><ext>. The archive is written to a temporary file
// and renamed into place when complete.
func writeArchive(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir, ext string, extras ...extraFile) (string, error) {
	names, err := fs.ListFiles(sourceDir)
	if err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "read pages")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "create destination")
	}

	finalPath := filepath.Join(destDir, fs.ChapterName(chapter)+ext)
	tempPath := finalPath + ".tmp"

	if err := writeZip(ctx, tempPath, sourceDir, names, extras); err != nil {
		_ = os.Remove(tempPath)
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "write %s", filepath.Base(finalPath))
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return "", mangascraper.WrapError(mangascraper.EPACKAGE, err, "commit %s", filepath.Base(finalPath))
	}
	return finalPath, nil
}

func writeZip(ctx context.Context, path, sourceDir string, names []string, extras []extraFile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	if err := addFiles(ctx, zw, sourceDir, names); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	for _, extra := range extras {
		w, err := zw.Create(extra.name)
		if err != nil {
			zw.Close()
			f.Close()
			return err
		}
		if _, err := w.Write(extra.data); err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addFiles(ctx context.Context, zw *zip.Writer, sourceDir string, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Images are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return err
		}
		if err := copyInto(w, filepath.Join(sourceDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
