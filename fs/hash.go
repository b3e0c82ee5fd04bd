package fs

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// HashPath returns the hex xxhash64 digest of an artifact. Files are hashed
// by content; directories by the names and contents of their files in
// sorted order.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	h := xxhash.New()
	if !info.IsDir() {
		if err := hashFile(h, path); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	names, err := ListFiles(path)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		_, _ = h.WriteString(name)
		if err := hashFile(h, filepath.Join(path, name)); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
