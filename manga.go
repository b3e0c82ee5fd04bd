package mangascraper

// Collection represents a series published by a source (e.g., a manga title).
type Collection struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"` // Markdown
}

// Validate returns an error if the collection contains invalid fields.
func (c *Collection) Validate() error {
	if c.SourceID == "" {
		return Errorf(EINVALID, "collection source ID required")
	}
	if c.URL == "" {
		return Errorf(EINVALID, "collection URL required")
	}
	return nil
}

// CollectionFilter represents a filter for Source.ListCollections.
// An empty Query lists everything the source can enumerate.
type CollectionFilter struct {
	Query string `json:"query"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Apply returns the window of collections selected by Offset and Limit.
func (f CollectionFilter) Apply(collections []*Collection) []*Collection {
	if f.Offset > 0 {
		if f.Offset >= len(collections) {
			return nil
		}
		collections = collections[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(collections) {
		collections = collections[:f.Limit]
	}
	return collections
}

// Chapter is one fetchable unit of a collection, composed of pages.
// A Chapter is immutable once constructed; use NewChapter.
type Chapter struct {
	id             string
	name           string
	collectionID   string
	collectionName string
	sourceID       string
	url            string
}

// NewChapter returns a chapter owned by sourceID within collection.
func NewChapter(sourceID string, collection *Collection, id, name, url string) *Chapter {
	ch := &Chapter{
		id:       id,
		name:     name,
		sourceID: sourceID,
		url:      url,
	}
	if collection != nil {
		ch.collectionID = collection.ID
		ch.collectionName = collection.Name
	}
	return ch
}

func (c *Chapter) ID() string             { return c.id }
func (c *Chapter) Name() string           { return c.name }
func (c *Chapter) CollectionID() string   { return c.collectionID }
func (c *Chapter) CollectionName() string { return c.collectionName }
func (c *Chapter) SourceID() string       { return c.sourceID }
func (c *Chapter) URL() string            { return c.url }

// String returns "<collection> - <chapter>" or just the chapter name.
func (c *Chapter) String() string {
	if c.collectionName == "" {
		return c.name
	}
	return c.collectionName + " - " + c.name
}

// Validate returns an error if the chapter contains invalid fields.
func (c *Chapter) Validate() error {
	if c.id == "" {
		return Errorf(EINVALID, "chapter ID required")
	}
	if c.sourceID == "" {
		return Errorf(EINVALID, "chapter source ID required")
	}
	if c.url == "" {
		return Errorf(EINVALID, "chapter URL required")
	}
	return nil
}

// Page is one remote item within a chapter. Ordinals are unique within the
// resolved page set of a chapter.
type Page struct {
	Ordinal int    `json:"ordinal"`
	Locator string `json:"locator"`
}
