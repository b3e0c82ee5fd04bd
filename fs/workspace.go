package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/blacker-cz/mangascraper"
)

// Workspace is a temporary directory that collects a chapter's pages before
// they are packaged. It lives under the download destination so packaging
// never crosses file systems.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh workspace directory under destination,
// creating destination if needed.
func NewWorkspace(destination string) (*Workspace, error) {
	if err := os.MkdirAll(destination, 0755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(destination, ".pages-*")
	if err != nil {
		return nil, err
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Save writes data to name inside the workspace.
// Names that would escape the workspace are rejected with EINVALID.
func (w *Workspace) Save(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if !strings.HasPrefix(path, w.dir+string(filepath.Separator)) {
		return "", mangascraper.Errorf(mangascraper.EINVALID, "path traversal detected: %s", name)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Files returns the names of the regular files in the workspace, sorted.
func (w *Workspace) Files() ([]string, error) {
	return ListFiles(w.dir)
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}

// ListFiles returns the names of the regular files directly inside dir, sorted.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
