package goquery

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/blacker-cz/mangascraper"
)

// QueryPlaceholder is replaced by the escaped search query in Config.SearchURL.
const QueryPlaceholder = "{query}"

// Chapter list orders.
const (
	OrderAscending  = "asc"
	OrderDescending = "desc"
)

// Config describes a site in terms of CSS selectors. Selectors that match
// anchors read "href"; selectors that match images read PageAttr/ImageAttr,
// falling back to "src" and common lazy-loading attributes.
type Config struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`

	// SearchURL is fetched for ListCollections with a query.
	SearchURL              string `json:"searchUrl,omitempty"`
	CollectionSelector     string `json:"collectionSelector,omitempty"`
	CollectionNextSelector string `json:"collectionNextSelector,omitempty"`

	// CollectionPattern selects collection URLs from the sitemap when
	// ListCollections is called without a query.
	CollectionPattern string `json:"collectionPattern,omitempty"`

	DescriptionSelector string `json:"descriptionSelector,omitempty"`

	ChapterSelector     string `json:"chapterSelector"`
	ChapterNextSelector string `json:"chapterNextSelector,omitempty"`
	ChapterOrder        string `json:"chapterOrder,omitempty"`

	PageSelector     string `json:"pageSelector,omitempty"`
	PageAttr         string `json:"pageAttr,omitempty"`
	PageNextSelector string `json:"pageNextSelector,omitempty"`

	// ImageSelector, when set, makes page locators reader page URLs; the
	// image is located on each reader page by ResolveFetchLocator.
	ImageSelector string `json:"imageSelector,omitempty"`
	ImageAttr     string `json:"imageAttr,omitempty"`

	// Text marks a novel source: each chapter is one page whose main text
	// is extracted and converted to Markdown.
	Text bool `json:"text,omitempty"`

	Referer           string  `json:"referer,omitempty"`
	UserAgent         string  `json:"userAgent,omitempty"`
	RenderJS          bool    `json:"renderJs,omitempty"`
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty"`
}

// Validate returns an error if the config cannot describe a working source.
func (c *Config) Validate() error {
	if c.ID == "" {
		return mangascraper.Errorf(mangascraper.EINVALID, "source ID required")
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil || !base.IsAbs() {
		return mangascraper.Errorf(mangascraper.EINVALID, "source %q: absolute base URL required", c.ID)
	}
	if c.ChapterSelector == "" {
		return mangascraper.Errorf(mangascraper.EINVALID, "source %q: chapter selector required", c.ID)
	}
	if !c.Text && c.PageSelector == "" {
		return mangascraper.Errorf(mangascraper.EINVALID, "source %q: page selector required", c.ID)
	}
	if c.SearchURL != "" {
		if !strings.Contains(c.SearchURL, QueryPlaceholder) {
			return mangascraper.Errorf(mangascraper.EINVALID, "source %q: search URL must contain %s", c.ID, QueryPlaceholder)
		}
		if c.CollectionSelector == "" {
			return mangascraper.Errorf(mangascraper.EINVALID, "source %q: collection selector required with search URL", c.ID)
		}
	}
	if c.CollectionPattern != "" {
		if _, err := regexp.Compile(c.CollectionPattern); err != nil {
			return mangascraper.Errorf(mangascraper.EINVALID, "source %q: invalid collection pattern: %v", c.ID, err)
		}
	}
	switch c.ChapterOrder {
	case "", OrderAscending, OrderDescending:
	default:
		return mangascraper.Errorf(mangascraper.EINVALID, "source %q: chapter order must be %q or %q", c.ID, OrderAscending, OrderDescending)
	}
	if c.RequestsPerSecond < 0 {
		return mangascraper.Errorf(mangascraper.EINVALID, "source %q: requests per second must not be negative", c.ID)
	}
	return nil
}

// ParseConfigs reads a JSON array of configs and validates each one.
// Returns EINVALID for malformed input or duplicate IDs.
func ParseConfigs(r io.Reader) ([]Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var configs []Config
	if err := dec.Decode(&configs); err != nil {
		return nil, mangascraper.Errorf(mangascraper.EINVALID, "invalid sources file: %v", err)
	}

	seen := make(map[string]bool, len(configs))
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, err
		}
		if seen[configs[i].ID] {
			return nil, mangascraper.Errorf(mangascraper.EINVALID, "duplicate source %q", configs[i].ID)
		}
		seen[configs[i].ID] = true
	}
	return configs, nil
}

// LoadConfigs reads the sources file at path.
// Returns ENOTFOUND if the file does not exist.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, mangascraper.Errorf(mangascraper.ENOTFOUND, "sources file %s not found", path)
	}
	if err != nil {
		return nil, err
	}
	return ParseConfigs(bytes.NewReader(data))
}
