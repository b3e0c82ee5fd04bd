package mangascraper

import (
	"context"
	"sort"
	"sync"
)

// Source represents a content site. Implementations hide the site's markup;
// consumers treat every method as an opaque, possibly slow network call.
type Source interface {
	// ID returns the stable identifier the source is registered under.
	ID() string

	// ListCollections returns collections matching the filter.
	ListCollections(ctx context.Context, filter CollectionFilter) ([]*Collection, error)

	// ListChapters returns the chapters of a collection in reading order.
	ListChapters(ctx context.Context, collection *Collection) ([]*Chapter, error)

	// ResolvePages returns the page set of a chapter.
	// Returns ERESOLVE if the page list cannot be determined.
	ResolvePages(ctx context.Context, chapter *Chapter) ([]Page, error)

	// ResolveFetchLocator returns the locator Fetch should be called with.
	ResolveFetchLocator(ctx context.Context, page Page) (string, error)

	// Fetch retrieves the bytes behind a locator.
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// SourceRegistry maps source identifiers to Source implementations.
// It is built once at startup and passed explicitly to consumers.
// SourceRegistry is safe for concurrent use.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewSourceRegistry returns a registry holding the given sources.
func NewSourceRegistry(sources ...Source) *SourceRegistry {
	r := &SourceRegistry{sources: make(map[string]Source)}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds a source, replacing any source with the same ID.
func (r *SourceRegistry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.ID()] = source
}

// Get returns the source registered under id.
// Returns ENOTFOUND if no such source exists.
func (r *SourceRegistry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, Errorf(ENOTFOUND, "source %q not found", id)
	}
	return s, nil
}

// List returns all registered sources ordered by ID.
func (r *SourceRegistry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID() < sources[j].ID() })
	return sources
}
